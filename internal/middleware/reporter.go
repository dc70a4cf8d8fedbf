package middleware

import (
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"

	"slacklog/pkg/logx"
)

// Reporter recovers panics and logs failed responses with a request snapshot.
//
//   - panic: ERROR "Internal Server Error: <path>" with the panic and stack, then 500
//   - 5xx:   ERROR "<status text>: <path>"
//   - 4xx:   WARN  "<status text>: <path>"
//
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Reporter(log logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = bufferForm(r)
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				log.Error("Internal Server Error: "+r.URL.Path,
					logx.Panic(rvr, debug.Stack()),
					logx.Request(Snapshot(r)),
					logx.Status(http.StatusInternalServerError),
				)
				if r.Header.Get("Connection") != "Upgrade" && ww.Status() == 0 {
					ww.WriteHeader(http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			switch {
			case status >= 500:
				log.Error(http.StatusText(status)+": "+r.URL.Path, logx.Request(Snapshot(r)), logx.Status(status))
			case status >= 400:
				log.Warn(http.StatusText(status)+": "+r.URL.Path, logx.Request(Snapshot(r)), logx.Status(status))
			}
		})
	}
}
