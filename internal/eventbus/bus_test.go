package eventbus

import (
	"testing"
)

func TestPublishFanoutAndFilter(t *testing.T) {
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	mailOnly, unsubMail := b.Subscribe(4, MailSent, MailFailed)
	defer unsubMail()

	b.Publish(Event{Kind: SlackDelivered, Data: Delivery{Channel: "#general"}})
	b.Publish(Event{Kind: MailFailed, Data: Delivery{Err: "no admins"}})

	if got := (<-all).Kind; got != SlackDelivered {
		t.Fatalf("first event = %s", got)
	}
	if got := (<-all).Kind; got != MailFailed {
		t.Fatalf("second event = %s", got)
	}
	ev := <-mailOnly
	if ev.Kind != MailFailed || ev.Time.IsZero() {
		t.Fatalf("filtered subscriber got %+v", ev)
	}
	if d, ok := ev.Data.(Delivery); !ok || d.Err != "no admins" {
		t.Fatalf("payload = %#v", ev.Data)
	}
	select {
	case extra := <-mailOnly:
		t.Fatalf("unexpected event %+v", extra)
	default:
	}

	st := b.Stats()
	if st.Published != 2 || st.Subscribers != 2 || st.ByKind[SlackDelivered] != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Kind: SlackFailed})
	b.Publish(Event{Kind: SlackFailed})

	if st := b.Stats(); st.Dropped != 1 {
		t.Fatalf("dropped = %d, want 1", st.Dropped)
	}
}

func TestUnsubscribeClosesOnce(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	b.Publish(Event{Kind: MailSent})
	if st := b.Stats(); st.Subscribers != 0 {
		t.Fatalf("subscribers = %d", st.Subscribers)
	}
}
