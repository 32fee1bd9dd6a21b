package engagement

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CommentStore is the persistence contract of the comment tree.
//
// CreateComment must validate the parent (active, same video) and increment
// its reply count in the same atomic unit as the insert: a crash between
// the two leaves neither visible.
type CommentStore interface {
	CreateComment(ctx context.Context, c Comment) (Comment, error)
	GetComment(ctx context.Context, commentID string) (Comment, error)
	UpdateContent(ctx context.Context, commentID, userID, content string) error
	SoftDeleteComment(ctx context.Context, commentID, userID string) error
	ReportComment(ctx context.Context, commentID string) error
	// ListReplies returns the direct children of parentID ordered by
	// creation time ascending, paginated by an opaque cursor.
	ListReplies(ctx context.Context, parentID string, limit int, cursor string) ([]Comment, string, error)
	// ListThread returns the root comments of a video, newest first,
	// paginated by an opaque cursor.
	ListThread(ctx context.Context, videoID string, limit int, cursor string) ([]Comment, string, error)
}

// CommentManager maintains the comment tree of a video: parent/child
// edges, denormalized reply counts, soft deletion and reporting.
// Authorization beyond author-scoping is the caller's job.
type CommentManager struct {
	Store  CommentStore
	Videos SubjectChecker // optional; nil relies on the store's ErrNotFound
	Events Events         // optional
	Log    *zap.Logger    // optional
}

// Add creates a comment on videoID, optionally as a reply to parentID.
// A missing, deleted or cross-video parent fails with ErrInvalidParent.
func (m *CommentManager) Add(ctx context.Context, videoID, userID, content string, parentID *string) (Comment, error) {
	if m.Videos != nil {
		ok, err := m.Videos.Exists(ctx, VideoSubject(videoID))
		if err != nil {
			return Comment{}, fmt.Errorf("check video: %w", err)
		}
		if !ok {
			return Comment{}, ErrNotFound
		}
	}

	created, err := m.Store.CreateComment(ctx, Comment{
		VideoID:  videoID,
		UserID:   userID,
		ParentID: parentID,
		Content:  content,
	})
	if err != nil {
		return Comment{}, err
	}

	if m.Events != nil {
		m.Events.CommentAdded(created)
	}
	if m.Log != nil {
		m.Log.Debug("comment added",
			zap.String("comment_id", created.ID),
			zap.String("video_id", created.VideoID),
			zap.Bool("reply", created.ParentID != nil))
	}
	return created, nil
}

// Get returns a single comment by id.
func (m *CommentManager) Get(ctx context.Context, commentID string) (Comment, error) {
	return m.Store.GetComment(ctx, commentID)
}

// Edit replaces the content of the user's own comment and stamps the
// modification time.
func (m *CommentManager) Edit(ctx context.Context, commentID, userID, content string) error {
	return m.Store.UpdateContent(ctx, commentID, userID, content)
}

// SoftDelete hides the user's own comment but keeps the node in the tree.
// The parent's reply count is not decremented: a deleted comment remains a
// structural reply, so thread numbering stays stable.
func (m *CommentManager) SoftDelete(ctx context.Context, commentID, userID string) error {
	return m.Store.SoftDeleteComment(ctx, commentID, userID)
}

// Report increments the comment's report counter. No moderation threshold
// is applied here.
func (m *CommentManager) Report(ctx context.Context, commentID string) error {
	return m.Store.ReportComment(ctx, commentID)
}

// ListReplies returns the direct replies of a comment, oldest first.
func (m *CommentManager) ListReplies(ctx context.Context, parentID string, limit int, cursor string) ([]Comment, string, error) {
	return m.Store.ListReplies(ctx, parentID, limit, cursor)
}

// ListThread returns the root comments of a video, newest first.
func (m *CommentManager) ListThread(ctx context.Context, videoID string, limit int, cursor string) ([]Comment, string, error) {
	return m.Store.ListThread(ctx, videoID, limit, cursor)
}
