package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/video-platform/internal/engagement"
	"github.com/example/video-platform/internal/platform/api"
	"github.com/example/video-platform/internal/platform/auth"
)

type createCommentRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parent_id,omitempty"`
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

type commentListResponse struct {
	Comments   []engagement.Comment `json:"comments"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// CreateComment handles POST /v1/videos/{video_id}/comments
func CreateComment(m *engagement.CommentManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", "", nil)
			return
		}

		var req createCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			api.BadRequest(w, "EMPTY_CONTENT", "content must not be empty", "", nil)
			return
		}

		created, err := m.Add(r.Context(), videoID, userID, req.Content, req.ParentID)
		if err != nil {
			switch {
			case errors.Is(err, engagement.ErrInvalidParent):
				api.BadRequest(w, "INVALID_PARENT", "parent comment is missing, deleted, or on another video", "", nil)
			case errors.Is(err, engagement.ErrNotFound):
				api.NotFound(w, "NOT_FOUND", "video not found", "")
			default:
				api.Internal(w, "")
			}
			return
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// GetComment handles GET /v1/comments/{comment_id}
func GetComment(m *engagement.CommentManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", "", nil)
			return
		}
		c, err := m.Get(r.Context(), commentID)
		if err != nil {
			if errors.Is(err, engagement.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "comment not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// UpdateComment handles PUT /v1/comments/{comment_id}
func UpdateComment(m *engagement.CommentManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", "", nil)
			return
		}

		var req updateCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			api.BadRequest(w, "EMPTY_CONTENT", "content must not be empty", "", nil)
			return
		}

		if err := m.Edit(r.Context(), commentID, userID, req.Content); err != nil {
			if errors.Is(err, engagement.ErrNotFoundOrForbidden) {
				api.Forbidden(w, "FORBIDDEN", "not found or not the author", "")
				return
			}
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// DeleteComment handles DELETE /v1/comments/{comment_id}
func DeleteComment(m *engagement.CommentManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", "", nil)
			return
		}

		if err := m.SoftDelete(r.Context(), commentID, userID); err != nil {
			if errors.Is(err, engagement.ErrNotFoundOrForbidden) {
				api.Forbidden(w, "FORBIDDEN", "not found or not the author", "")
				return
			}
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// ReportComment handles POST /v1/comments/{comment_id}/report
func ReportComment(m *engagement.CommentManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", "", nil)
			return
		}

		if err := m.Report(r.Context(), commentID); err != nil {
			if errors.Is(err, engagement.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "comment not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "reported"})
	}
}

// ListReplies handles GET /v1/comments/{comment_id}/replies
func ListReplies(m *engagement.CommentManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", "", nil)
			return
		}

		replies, next, err := m.ListReplies(r.Context(), commentID, pageLimit(r), cursorParam(r))
		if err != nil {
			switch {
			case errors.Is(err, engagement.ErrNotFound):
				api.NotFound(w, "NOT_FOUND", "comment not found", "")
			case errors.Is(err, engagement.ErrBadCursor):
				api.BadRequest(w, "INVALID_CURSOR", "cursor is not valid", "", nil)
			default:
				api.Internal(w, "")
			}
			return
		}
		api.WriteJSON(w, http.StatusOK, commentListResponse{Comments: replies, NextCursor: next})
	}
}

// ListThread handles GET /v1/videos/{video_id}/comments
func ListThread(m *engagement.CommentManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", "", nil)
			return
		}

		roots, next, err := m.ListThread(r.Context(), videoID, pageLimit(r), cursorParam(r))
		if err != nil {
			switch {
			case errors.Is(err, engagement.ErrNotFound):
				api.NotFound(w, "NOT_FOUND", "video not found", "")
			case errors.Is(err, engagement.ErrBadCursor):
				api.BadRequest(w, "INVALID_CURSOR", "cursor is not valid", "", nil)
			default:
				api.Internal(w, "")
			}
			return
		}
		api.WriteJSON(w, http.StatusOK, commentListResponse{Comments: roots, NextCursor: next})
	}
}

func pageLimit(r *http.Request) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			return parsed
		}
	}
	return 50
}

func cursorParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("cursor"))
}
