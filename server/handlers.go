package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tunevault/core/engine"
	"tunevault/core/session"
	"tunevault/errs"

	"github.com/gorilla/mux"
)

// APIHandler serves the command and status endpoints.
type APIHandler struct {
	engine   *engine.Engine
	sessions *session.Manager
}

// NewAPIHandler creates the handler.
func NewAPIHandler(eng *engine.Engine, sessions *session.Manager) *APIHandler {
	return &APIHandler{engine: eng, sessions: sessions}
}

type commandRequest struct {
	Target string `json:"target"`
	Query  string `json:"query"`
}

type commandResponse struct {
	Message string `json:"message"`
}

// HandleRoot answers the bare liveness probe.
func (h *APIHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("tunevault is running"))
}

// HandleHealth reports process health with no side effects.
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "tunevault",
		"time":    time.Now().Unix(),
	})
}

// HandleSong is the "search+fetch audio" command.
func (h *APIHandler) HandleSong(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, h.engine.Song)
}

// HandleVideo is the "search+fetch video" command.
func (h *APIHandler) HandleVideo(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, h.engine.Video)
}

func (h *APIHandler) runCommand(w http.ResponseWriter, r *http.Request, cmd func(ctx context.Context, target, query string) (string, error)) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	message, err := cmd(r.Context(), req.Target, req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, commandResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNoResults):
		status = http.StatusNotFound
	default:
		var fe *errs.FetchError
		var se *errs.SessionError
		if errors.As(err, &fe) || errors.As(err, &se) {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// HandleQueue enqueues a query result into the session's playback queue.
func (h *APIHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	message, err := h.engine.Queue(r.Context(), sessionID, req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, commandResponse{Message: message})
}

// HandleSkip advances the session's queue.
func (h *APIHandler) HandleSkip(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	message, err := h.engine.Skip(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Message: message})
}

// HandleStop clears the queue and releases the stream.
func (h *APIHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	message := h.engine.Stop(r.Context(), sessionID)
	writeJSON(w, http.StatusOK, commandResponse{Message: message})
}

// HandleSessions lists every known session.
func (h *APIHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Snapshots())
}

// HandleSession returns one session's snapshot.
func (h *APIHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Snapshot(mux.Vars(r)["id"]))
}
