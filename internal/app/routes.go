package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"slacklog/internal/eventbus"
	"slacklog/internal/middleware"
	"slacklog/internal/runtime/supervisor"
	logx "slacklog/pkg/logx"
)

type stats struct {
	Bus        eventbus.Stats      `json:"bus"`
	Supervisor supervisor.Counters `json:"supervisor"`
	Addr       string              `json:"addr"`
}

func (a *App) routes(log logx.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Reporter(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	r.Route("/debug", func(r chi.Router) {
		r.Use(a.debugOnly)
		r.Get("/panic", func(http.ResponseWriter, *http.Request) {
			panic(errors.New("debug panic requested"))
		})
		r.HandleFunc("/error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		})
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			st := stats{Bus: a.bus.Stats(), Addr: a.srv.Addr()}
			if a.sup != nil {
				st.Supervisor = a.sup.Counters()
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(st)
		})
	})
	return r
}

// debugOnly hides /debug/* unless server.debug_routes is set in the live config.
func (a *App) debugOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg := a.cfgm.Get(); cfg == nil || !cfg.Server.DebugRoutes {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
