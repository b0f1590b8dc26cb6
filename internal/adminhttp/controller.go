package adminhttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/flagresolve/engine/core"
)

// Controller exposes a read-only admin surface over a running Engine:
// liveness, Prometheus metrics, and a manual flush trigger. It never
// exposes resolve_with_sticky; that stays an in-process call, not a
// network endpoint, per the resolver's external-interfaces scope.
type Controller struct {
	engine *core.Engine
}

func NewController(engine *core.Engine) *Controller {
	return &Controller{engine: engine}
}

func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (c *Controller) Metrics(w http.ResponseWriter, r *http.Request) {
	c.engine.MetricsHandler().ServeHTTP(w, r)
}

// Flush triggers a single flush_logs call and returns the serialized
// WriteFlagLogsRequest bytes directly, so an operator can inspect what
// would otherwise go to the log-ingestion collaborator.
func (c *Controller) Flush(w http.ResponseWriter, r *http.Request) {
	maxBytes := 1 << 20
	if v := r.URL.Query().Get("max_bytes"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxBytes = n
		}
	}
	out, err := c.engine.FlushLogs(maxBytes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if out == nil {
		w.Write([]byte(`{}`))
		return
	}
	w.Write(out)
}
