// Package health serves the local status listener: liveness, a small status
// document for the UI shell, and the Prometheus scrape endpoint. It exposes
// metadata only; nothing here can read or return vault contents.
package health

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blackbox/internal/catalog"
	"blackbox/internal/session"
	"blackbox/internal/vault"
)

// Status is the /status document.
type Status struct {
	State          string `json:"state"`
	Initialized    bool   `json:"initialized"`
	CatalogSize    int    `json:"catalog_size"`
	Records        int    `json:"records"`
	UnlockAttempts uint64 `json:"unlock_attempts"`
	LastAttempt    string `json:"last_attempt,omitempty"`
}

// NewRouter builds the status router.
func NewRouter(sess *session.Manager, vaultSvc *vault.Service, sites catalog.Store, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		st := Status{State: sess.State().String()}

		if entries, err := sites.List(req.Context()); err == nil {
			st.CatalogSize = len(entries)
		}

		stats, err := vaultSvc.Stats(req.Context())
		switch {
		case err == nil:
			st.Initialized = true
			st.Records = stats.Records
			st.UnlockAttempts = stats.UnlockAttempts
			st.LastAttempt = stats.LastAttempt
		case errors.Is(err, vault.ErrHeaderMissing):
		default:
			if logger != nil {
				logger.Warn("status: vault stats unavailable", "err", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
