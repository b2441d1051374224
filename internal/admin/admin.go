// Package admin exposes the operator HTTP surface: status, resources, audit
// trail, objective management, API key updates and circuit-breaker recovery.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"tacticom/internal/audit"
	"tacticom/internal/commander"
	"tacticom/internal/config"
	"tacticom/internal/llm"
	"tacticom/internal/model"
	"tacticom/internal/state"
)

// Handlers serves the admin API.
type Handlers struct {
	cmd   *commander.Commander
	state *state.Manager
	audit *audit.Store
	log   *slog.Logger
}

func NewHandlers(cmd *commander.Commander, st *state.Manager, aud *audit.Store, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{cmd: cmd, state: st, audit: aud, log: log}
}

// NewMux wires the admin routes.
func NewMux(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("GET /api/resources", h.handleResources)
	mux.HandleFunc("POST /api/resources", h.handleSetResources)
	mux.HandleFunc("GET /api/audit", h.handleAudit)
	mux.HandleFunc("GET /api/objectives", h.handleGetObjectives)
	mux.HandleFunc("POST /api/objectives", h.handleSetObjectives)
	mux.HandleFunc("POST /api/reinitialize", h.handleReinitialize)
	mux.HandleFunc("POST /api/emergency-stop", h.handleEmergencyStop)
	mux.HandleFunc("POST /api/test-connection", h.handleTestConnection)
	mux.HandleFunc("POST /api/keys", h.handleSetKey)
	mux.HandleFunc("POST /api/intent", h.handleSetIntent)

	return CORS(mux)
}

func (h *Handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cmd.Status())
}

func (h *Handlers) handleResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.ResourceStatuses())
}

func (h *Handlers) handleAudit(w http.ResponseWriter, r *http.Request) {
	n := 100
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	writeJSON(w, http.StatusOK, h.audit.Recent(n))
}

func (h *Handlers) handleGetObjectives(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Objectives())
}

func (h *Handlers) handleSetObjectives(w http.ResponseWriter, r *http.Request) {
	var objs []model.Objective
	if err := json.NewDecoder(r.Body).Decode(&objs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, o := range objs {
		if o.ID == "" {
			writeError(w, http.StatusBadRequest, "objective without id")
			return
		}
		if o.State == "" {
			o.State = model.ObjectivePending
		}
		h.state.SetObjective(o)
	}
	h.log.Info("objectives updated via admin", "count", len(objs))
	writeJSON(w, http.StatusOK, map[string]int{"updated": len(objs)})
}

func (h *Handlers) handleSetResources(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Template  string                    `json:"template"`
		Resources []config.ResourceTemplate `json:"resources"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch {
	case p.Template != "":
		set, ok := config.ResourceSet(p.Template)
		if !ok {
			writeError(w, http.StatusBadRequest,
				"unknown resource template, available: "+strings.Join(config.ResourceSetNames(), ", "))
			return
		}
		h.state.SetResources(set)
		h.log.Info("resource pool replaced via admin", "template", p.Template)
	case len(p.Resources) > 0:
		for _, t := range p.Resources {
			if t.Name == "" {
				writeError(w, http.StatusBadRequest, "resource without name")
				return
			}
			if t.Side == "" {
				writeError(w, http.StatusBadRequest, "resource "+t.Name+" without side")
				return
			}
			if t.MaxUses < 0 {
				writeError(w, http.StatusBadRequest, "resource "+t.Name+" has negative max_uses")
				return
			}
		}
		h.state.SetResources(p.Resources)
		h.log.Info("resource pool replaced via admin", "count", len(p.Resources))
	default:
		writeError(w, http.StatusBadRequest, "template or resources required")
		return
	}
	writeJSON(w, http.StatusOK, h.state.ResourceStatuses())
}

func (h *Handlers) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	h.cmd.EmergencyStop()
	h.log.Warn("emergency stop triggered via admin")
	writeJSON(w, http.StatusOK, h.cmd.Status())
}

func (h *Handlers) handleReinitialize(w http.ResponseWriter, r *http.Request) {
	h.cmd.Reinitialize()
	writeJSON(w, http.StatusOK, h.cmd.Status())
}

func (h *Handlers) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	ok, detail := h.cmd.TestConnectivity(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"ok": ok, "detail": detail})
}

func (h *Handlers) handleSetKey(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Kind string `json:"kind"`
		Key  string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Kind == "" || p.Key == "" {
		writeError(w, http.StatusBadRequest, "kind and key are required")
		return
	}
	h.state.SetAPIKey(llm.ProviderKind(p.Kind), p.Key)
	h.log.Info("api key updated via admin", "kind", p.Kind)
	writeJSON(w, http.StatusOK, map[string]string{"updated": p.Kind})
}

func (h *Handlers) handleSetIntent(w http.ResponseWriter, r *http.Request) {
	var p struct {
		MissionIntent       string `json:"mission_intent"`
		DeploymentDirective string `json:"deployment_directive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.MissionIntent != "" {
		h.state.SetMissionIntent(p.MissionIntent)
	}
	if p.DeploymentDirective != "" {
		h.state.SetDeploymentDirective(p.DeploymentDirective)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
