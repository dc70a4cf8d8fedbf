package mail

import (
	"context"
	"sync"
)

// Outbox is an in-memory Mailer. It records every message instead of
// sending it, for tests and for running without an SMTP relay.
type Outbox struct {
	mu   sync.Mutex
	msgs []Message
	// Err, when set, is returned by MailAdmins after recording the message.
	Err error
}

func (o *Outbox) MailAdmins(_ context.Context, m Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, m)
	return o.Err
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.msgs...)
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}
