// Package middleware connects HTTP handlers to error notifications: it turns
// requests into record.Snapshots and logs panics and server errors with them.
package middleware

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"slacklog/internal/record"
)

// MaxFormBytes caps how much of a url-encoded body is kept for the snapshot.
const MaxFormBytes = 1 << 20

type ctxKey int

const formKey ctxKey = iota

// bufferForm keeps a copy of a url-encoded body so the snapshot still shows the
// form after the handler consumed it. The request body is restored unchanged.
func bufferForm(r *http.Request) *http.Request {
	if r.Body == nil || r.Body == http.NoBody || !isURLEncoded(r.Header.Get("Content-Type")) {
		return r
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, MaxFormBytes+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil || len(buf) > MaxFormBytes {
		return r
	}
	return r.WithContext(context.WithValue(r.Context(), formKey, string(buf)))
}

func isURLEncoded(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/x-www-form-urlencoded"
}

// Snapshot captures the parts of r an error notification shows. Query and
// form keep their wire order; META holds CGI-style variables.
func Snapshot(r *http.Request) *record.Snapshot {
	if r == nil {
		return nil
	}
	s := &record.Snapshot{Method: r.Method, RemoteAddr: r.RemoteAddr}
	if r.URL != nil {
		s.Path = r.URL.Path
		addOrdered(&s.Query, r.URL.RawQuery)
	}

	if raw, ok := r.Context().Value(formKey).(string); ok {
		addOrdered(&s.Form, raw)
	} else if r.PostForm != nil {
		addSorted(&s.Form, r.PostForm)
	}

	for _, c := range r.Cookies() {
		s.Cookies.Set(c.Name, c.Value)
	}

	meta(&s.Meta, r)
	return s
}

// addOrdered parses a query string without losing key order, which
// url.ParseQuery does.
func addOrdered(dst *record.Values, raw string) {
	for raw != "" {
		var kv string
		kv, raw, _ = strings.Cut(raw, "&")
		if kv == "" || strings.Contains(kv, ";") {
			continue
		}
		k, v, _ := strings.Cut(kv, "=")
		k, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		v, err = url.QueryUnescape(v)
		if err != nil {
			continue
		}
		dst.Add(k, v)
	}
}

func addSorted(dst *record.Values, vs url.Values) {
	keys := make([]string, 0, len(vs))
	for k := range vs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range vs[k] {
			dst.Add(k, v)
		}
	}
}

func meta(m *record.Pairs, r *http.Request) {
	m.Set("REQUEST_METHOD", r.Method)
	if r.URL != nil {
		m.Set("PATH_INFO", r.URL.Path)
		m.Set("QUERY_STRING", r.URL.RawQuery)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	m.Set("REMOTE_ADDR", host)

	name, port := r.Host, ""
	if h, p, err := net.SplitHostPort(r.Host); err == nil {
		name, port = h, p
	}
	if port == "" {
		port = "80"
		if r.TLS != nil {
			port = "443"
		}
	}
	m.Set("SERVER_NAME", name)
	m.Set("SERVER_PORT", port)
	m.Set("SERVER_PROTOCOL", r.Proto)
	if ct := r.Header.Get("Content-Type"); ct != "" {
		m.Set("CONTENT_TYPE", ct)
	}
	if r.ContentLength > 0 {
		m.Set("CONTENT_LENGTH", strconv.FormatInt(r.ContentLength, 10))
	}

	names := make([]string, 0, len(r.Header))
	for k := range r.Header {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if k == "Content-Type" || k == "Content-Length" {
			continue
		}
		m.Set("HTTP_"+strings.ToUpper(strings.ReplaceAll(k, "-", "_")), strings.Join(r.Header[k], ","))
	}
	if r.Host != "" {
		m.Set("HTTP_HOST", r.Host)
	}
}
