// Package api exposes the daemon's HTTP surface: command submission and
// inspection, session reload, health and metrics. It never mutates gameplay
// state directly; every write goes through the durable queue.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/queue"
	"github.com/parkjunho/samguk/internal/session"
	"github.com/parkjunho/samguk/internal/store"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	queue    *queue.Queue
	loader   *session.Loader
	sessions *session.Cache
	generals *store.GeneralCache
	mux      *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(q *queue.Queue, loader *session.Loader, sessions *session.Cache, generals *store.GeneralCache) http.Handler {
	h := &Handler{queue: q, loader: loader, sessions: sessions, generals: generals, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/commands", h.submitCommand)
	h.mux.HandleFunc("GET /v1/commands/{id}", h.getCommand)
	h.mux.HandleFunc("POST /v1/commands/{id}/cancel", h.cancelCommand)
	h.mux.HandleFunc("GET /v1/generals/{id}", h.getGeneral)
	h.mux.HandleFunc("GET /v1/sessions", h.listSessions)
	h.mux.HandleFunc("POST /v1/sessions/reload", h.reloadSessions)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

type submitRequest struct {
	SessionID string         `json:"session_id"`
	ActorID   int64          `json:"actor_id"`
	TargetID  *int64         `json:"target_id,omitempty"`
	Kind      string         `json:"kind"`
	Args      map[string]any `json:"args,omitempty"`
}

// POST /v1/commands — append a command to the durable queue. Submission only
// checks shape; gameplay validation happens at execution and is reported on
// the command record.
func (h *Handler) submitCommand(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}
	if req.ActorID == 0 {
		writeError(w, http.StatusBadRequest, "actor_id is required")
		return
	}
	sess, err := h.sessions.Get(req.SessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if conf := sess.Command(req.Kind); conf == nil || !conf.Enabled {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("command kind %q is not enabled for session %s", req.Kind, req.SessionID))
		return
	}

	cmd := command.New(req.SessionID, req.ActorID, req.Kind, command.Args(req.Args))
	cmd.TargetID = req.TargetID
	if err := h.queue.Enqueue(r.Context(), cmd); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, commandView(cmd))
}

// GET /v1/commands/{id} — inspect a command, including failure reasons on
// dead-lettered ones.
func (h *Handler) getCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.queue.ByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown command")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, commandView(cmd))
}

// POST /v1/commands/{id}/cancel — cancel a still-pending command. Executing
// and terminal commands reject with 409.
func (h *Handler) cancelCommand(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.queue.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, command.ErrCommandState) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": command.StatusCancelled})
}

// GET /v1/generals/{id} — inspect an actor. Served from the read-through
// cache; the executor invalidates touched ids, so stale reads are bounded by
// the command that is currently in flight.
func (h *Handler) getGeneral(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "general id must be an integer")
		return
	}
	g, err := h.generals.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown general")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, generalView(g))
}

// sessionView is the wire shape of one session configuration. The schema
// structs only carry yaml tags, so they are summarized here instead of being
// encoded directly.
type sessionView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	StartYear    int      `json:"start_year"`
	DaysPerMonth int      `json:"days_per_month"`
	GameSpeed    float64  `json:"game_speed"`
	Commands     []string `json:"commands"`
	Events       []string `json:"events"`
}

// GET /v1/sessions — list loaded session configurations.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	cfg := h.loader.File()
	views := make([]sessionView, 0, len(cfg.Sessions))
	for i := range cfg.Sessions {
		views = append(views, newSessionView(&cfg.Sessions[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  cfg.Version,
		"sessions": views,
	})
}

func newSessionView(s *session.Session) sessionView {
	v := sessionView{
		ID:           s.ID,
		Name:         s.Name,
		StartYear:    s.StartYear,
		DaysPerMonth: s.DaysPerMonth,
		GameSpeed:    s.GameSpeed,
		Commands:     []string{},
		Events:       []string{},
	}
	for _, c := range s.Commands {
		if c.Enabled {
			v.Commands = append(v.Commands, c.Kind)
		}
	}
	for _, e := range s.Events {
		if e.Enabled {
			v.Events = append(v.Events, e.ID)
		}
	}
	return v
}

// POST /v1/sessions/reload — force a re-read of the sessions file. The
// loader's validation gate rejects a bad file before it goes live, so a 422
// here means the previous configuration is still being served.
func (h *Handler) reloadSessions(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		if errors.Is(err, session.ErrInvalid) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":       true,
		"sessions_count": len(cfg.Sessions),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func generalView(g *store.General) map[string]any {
	return map[string]any{
		"id":          g.ID,
		"session_id":  g.SessionID,
		"faction_id":  g.FactionID,
		"city_id":     g.CityID,
		"name":        g.Name,
		"leadership":  g.Leadership,
		"strength":    g.Strength,
		"intellect":   g.Intellect,
		"personality": g.Personality,
		"items":       []string(g.Items),
		"troops":      g.Troops,
		"training":    g.Training,
		"gold":        g.Gold,
		"rice":        g.Rice,
	}
}

func commandView(cmd *command.Command) map[string]any {
	v := map[string]any{
		"id":          cmd.ID,
		"session_id":  cmd.SessionID,
		"actor_id":    cmd.ActorID,
		"kind":        cmd.Kind,
		"status":      cmd.Status,
		"attempts":    cmd.Attempts,
		"enqueued_at": cmd.EnqueuedAt,
	}
	if cmd.TargetID != nil {
		v["target_id"] = *cmd.TargetID
	}
	if cmd.LastError != "" {
		v["last_error"] = cmd.LastError
	}
	if cmd.Deferred() {
		v["completes_at"] = cmd.CompletesAt
	}
	return v
}
