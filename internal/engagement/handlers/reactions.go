// Package handlers exposes the engagement core over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/video-platform/internal/engagement"
	"github.com/example/video-platform/internal/platform/api"
	"github.com/example/video-platform/internal/platform/auth"
)

type toggleRequest struct {
	Direction string `json:"direction"`
}

// ToggleReaction handles POST /v1/{videos|comments}/{id}/reactions for the
// subject kind bound at registration. Videos and comments share the same
// handler body because the engine is kind-agnostic.
func ToggleReaction(e *engagement.ReactionEngine, kind engagement.SubjectKind, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		id := strings.TrimSpace(chi.URLParam(r, param))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", param+" is required", "", nil)
			return
		}

		var req toggleRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		dir := engagement.Direction(strings.ToLower(strings.TrimSpace(req.Direction)))
		if !dir.Valid() {
			api.BadRequest(w, "INVALID_DIRECTION", "direction must be 'like' or 'dislike'", "", nil)
			return
		}

		res, err := e.Toggle(r.Context(), engagement.Subject{Kind: kind, ID: id}, userID, dir)
		if err != nil {
			if errors.Is(err, engagement.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", string(kind)+" not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}

// GetReactions handles GET for a subject's counters, including the
// caller's own state when authenticated.
func GetReactions(e *engagement.ReactionEngine, kind engagement.SubjectKind, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, param))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", param+" is required", "", nil)
			return
		}

		userID, _ := auth.UserIDFromContext(r.Context())
		res, err := e.View(r.Context(), engagement.Subject{Kind: kind, ID: id}, userID)
		if err != nil {
			if errors.Is(err, engagement.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", string(kind)+" not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}
