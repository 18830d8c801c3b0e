package http

import (
	"net/http"
	"time"

	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
	"github.com/Dodge100/FairArena-sub008/pkg/httpx"
	"github.com/Dodge100/FairArena-sub008/pkg/jwtx"
)

// LivezHandler answers liveness probes. Alive means the process is serving;
// dependency health belongs to readyz.
type LivezHandler struct {
	Version   string
	StartTime time.Time
}

func (h *LivezHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.Version,
		"uptime":  time.Since(h.StartTime).Round(time.Second).String(),
	})
}

// ReadyzHandler answers readiness probes: the database must respond and at
// least one signing key must be loaded, otherwise the instance cannot issue
// or verify tokens and should not receive traffic.
type ReadyzHandler struct {
	Store store.Store
	Keys  *jwtx.KeySet
}

func (h *ReadyzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "database unreachable",
		})
		return
	}
	if !h.Keys.IsReady() {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "no signing keys loaded",
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
