// Package server exposes the chat API over HTTP and bridges requests to the
// per-thread agent runtime.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rcliao/agent-chat/internal/filestore"
	"github.com/rcliao/agent-chat/internal/thread"
)

// Handler serves the thread and chat endpoints.
type Handler struct {
	threads *thread.Store
	bridge  *Bridge
	logger  *slog.Logger
}

// NewHandler creates an API handler.
func NewHandler(threads *thread.Store, bridge *Bridge, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{threads: threads, bridge: bridge, logger: logger}
}

// Routes returns the API mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /threads/{$}", h.ListThreads)
	mux.HandleFunc("POST /threads/{$}", h.CreateThread)
	mux.HandleFunc("GET /thread/{id}/{$}", h.GetThread)
	mux.HandleFunc("POST /thread/{id}/{$}", h.Chat)
	mux.HandleFunc("DELETE /thread/{id}", h.DeleteThread)
	return mux
}

// ListThreads handles GET /threads/ — the index projection of every thread.
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	idx, err := h.threads.List()
	if err != nil {
		h.logger.Error("list threads", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// CreateThread handles POST /threads/.
func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	t, err := h.threads.Create()
	if err != nil {
		h.logger.Error("create thread", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info("thread created", "thread_id", t.ID)
	writeJSON(w, http.StatusOK, t)
}

// GetThread handles GET /thread/{id}/.
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := h.threads.Get(id)
	if err != nil {
		var notFound *filestore.NotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "Thread not found")
			return
		}
		h.logger.Error("get thread", "thread_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread_data": []thread.Thread{t}})
}

// chatRequest is the POST /thread/{id}/ body.
type chatRequest struct {
	Content string `json:"content"`
}

// Chat handles POST /thread/{id}/ — runs one exchange, streaming
// {"chunk": {...}} JSON lines as increments arrive.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	sw, err := newStreamWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	err = h.bridge.HandleMessage(r.Context(), id, req.Content, sw.emit)
	if err == nil {
		// Make sure even an empty exchange produces a well-formed stream.
		sw.start()
		return
	}

	h.logger.Error("chat exchange failed", "thread_id", id, "error", err)
	if sw.started {
		// Headers are gone; the truncated stream is the error signal.
		return
	}
	var notFound *filestore.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, "Thread not found")
		return
	}
	writeError(w, statusFor(err), err.Error())
}

// DeleteThread handles DELETE /thread/{id} — removes the record, its index
// entry, and any live agent instance.
func (h *Handler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.threads.Delete(id); err != nil {
		var notFound *filestore.NotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "Thread not found")
			return
		}
		h.logger.Error("delete thread", "thread_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.bridge.Evict(id)
	h.logger.Info("thread deleted", "thread_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
