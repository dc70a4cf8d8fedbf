package slack

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newServer(t *testing.T, status int, body string, got *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content-type = %q", ct)
		}
		b, _ := io.ReadAll(r.Body)
		if got != nil {
			v, err := url.ParseQuery(string(b))
			if err != nil {
				t.Errorf("parse form: %v", err)
			}
			*got = v
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPostMessageOK(t *testing.T) {
	var form url.Values
	srv := newServer(t, http.StatusOK, `{"ok": true, "channel": "C1", "ts": "1.2"}`, &form)

	resp, err := New(srv.Client()).PostMessage(context.Background(), srv.URL, Message{
		Token:    "fsk33",
		Channel:  "#pw-errors",
		Username: "django",
		Text:     "```hi```",
	})
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if !resp.OK || resp.Ts != "1.2" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if form.Get("token") != "fsk33" || form.Get("channel") != "#pw-errors" || form.Get("text") != "```hi```" {
		t.Fatalf("unexpected form %v", form)
	}
	if _, ok := form["icon_url"]; ok {
		t.Fatalf("empty icon_url must be omitted")
	}
	if _, ok := form["icon_emoji"]; ok {
		t.Fatalf("empty icon_emoji must be omitted")
	}
}

func TestPostMessageIcons(t *testing.T) {
	var form url.Values
	srv := newServer(t, http.StatusOK, `{"ok": true}`, &form)

	_, err := New(srv.Client()).PostMessage(context.Background(), srv.URL, Message{IconEmoji: ":fire:"})
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if form.Get("icon_emoji") != ":fire:" {
		t.Fatalf("icon_emoji = %q", form.Get("icon_emoji"))
	}
}

func TestPostMessageNotOK(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"ok": false, "error": "channel_not_found"}`, nil)

	resp, err := New(srv.Client()).PostMessage(context.Background(), srv.URL, Message{})
	if !errors.Is(err, ErrNotOK) {
		t.Fatalf("err = %v, want ErrNotOK", err)
	}
	if resp == nil || resp.Error != "channel_not_found" {
		t.Fatalf("expected decoded response, got %+v", resp)
	}
}

func TestPostMessageBadStatus(t *testing.T) {
	srv := newServer(t, http.StatusInternalServerError, `{"ok": true}`, nil)

	if _, err := New(srv.Client()).PostMessage(context.Background(), srv.URL, Message{}); !errors.Is(err, ErrStatus) {
		t.Fatalf("err = %v, want ErrStatus", err)
	}
}

func TestPostMessageGarbageBody(t *testing.T) {
	srv := newServer(t, http.StatusOK, `<html>oops</html>`, nil)

	if _, err := New(srv.Client()).PostMessage(context.Background(), srv.URL, Message{}); !errors.Is(err, ErrBadResponse) {
		t.Fatalf("err = %v, want ErrBadResponse", err)
	}
}

func TestPostMessageTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	if _, err := New(nil).PostMessage(context.Background(), endpoint, Message{}); err == nil {
		t.Fatalf("expected transport error")
	}
}
