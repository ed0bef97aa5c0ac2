package server

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rcliao/agent-chat/internal/filestore"
)

// errorBody is the JSON error response shape: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

// statusFor maps failures onto HTTP status codes: missing keys are the
// caller's 404, everything else (codec, storage, collaborator failures) is an
// internal failure.
func statusFor(err error) int {
	var notFound *filestore.NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
