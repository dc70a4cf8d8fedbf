// Package slack is a minimal client for Slack's chat.postMessage Web API method.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultEndpoint is the chat.postMessage Web API URL.
const DefaultEndpoint = "https://slack.com/api/chat.postMessage"

var (
	// ErrNotOK is returned when Slack answers with "ok": false.
	ErrNotOK = errors.New("slack: message rejected")
	// ErrStatus is returned for any HTTP status other than 200.
	ErrStatus = errors.New("slack: unexpected http status")
	// ErrBadResponse is returned when the body is not a JSON acknowledgment.
	ErrBadResponse = errors.New("slack: malformed response")
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Message is the form payload of chat.postMessage.
// Empty IconURL/IconEmoji are omitted from the request.
type Message struct {
	Token     string
	Channel   string
	Username  string
	IconURL   string
	IconEmoji string
	Text      string
}

// Form encodes the message as application/x-www-form-urlencoded values.
func (m Message) Form() url.Values {
	v := url.Values{}
	v.Set("token", m.Token)
	v.Set("channel", m.Channel)
	v.Set("username", m.Username)
	v.Set("text", m.Text)
	if m.IconURL != "" {
		v.Set("icon_url", m.IconURL)
	}
	if m.IconEmoji != "" {
		v.Set("icon_emoji", m.IconEmoji)
	}
	return v
}

// Response is the acknowledgment returned by Slack.
type Response struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel,omitempty"`
	Ts      string `json:"ts,omitempty"`
}

// Client posts messages. The zero value uses http.DefaultClient.
type Client struct {
	HTTP *http.Client
}

func New(hc *http.Client) *Client {
	return &Client{HTTP: hc}
}

// PostMessage sends m to endpoint. It returns a nil error only when Slack
// answered 200 with "ok": true. The decoded Response is returned whenever the
// body could be parsed, including the ErrNotOK case.
func (c *Client) PostMessage(ctx context.Context, endpoint string, m Message) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	hc := http.DefaultClient
	if c != nil && c.HTTP != nil {
		hc = c.HTTP
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(m.Form().Encode()))
	if err != nil {
		return nil, fmt.Errorf("slack: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack: post: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("slack: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if !out.OK {
		if out.Error != "" {
			return &out, fmt.Errorf("%w: %s", ErrNotOK, out.Error)
		}
		return &out, ErrNotOK
	}
	return &out, nil
}
