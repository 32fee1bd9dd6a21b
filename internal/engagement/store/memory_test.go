package store

import (
	"context"
	"errors"
	"testing"

	"github.com/example/video-platform/internal/engagement"
)

func TestInterfaces(t *testing.T) {
	var _ engagement.ReactionStore = (*MemoryStore)(nil)
	var _ engagement.CommentStore = (*MemoryStore)(nil)
	var _ engagement.SubjectChecker = (*MemoryStore)(nil)
	var _ engagement.ReactionStore = (*PostgresStore)(nil)
	var _ engagement.CommentStore = (*PostgresStore)(nil)
	var _ engagement.SubjectChecker = (*PostgresStore)(nil)
}

func newStoreWithVideo(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	s.AddVideo("v1")
	return s
}

func TestCreateComment_RootAndReply(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()

	root, err := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u1", Content: "first"})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	if root.ID == "" || root.ReplyCount != 0 {
		t.Fatalf("unexpected root: %+v", root)
	}

	reply, err := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u2", ParentID: &root.ID, Content: "reply"})
	if err != nil {
		t.Fatalf("create reply: %v", err)
	}
	if reply.ParentID == nil || *reply.ParentID != root.ID {
		t.Fatalf("reply parent not set: %+v", reply)
	}

	got, err := s.GetComment(ctx, root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReplyCount != 1 {
		t.Fatalf("parent reply_count = %d, want 1", got.ReplyCount)
	}
}

func TestCreateComment_ReplyCountTracksEveryReply(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()

	root, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u1", Content: "root"})
	const k = 5
	for i := 0; i < k; i++ {
		if _, err := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u2", ParentID: &root.ID, Content: "r"}); err != nil {
			t.Fatalf("reply %d: %v", i, err)
		}
	}

	got, _ := s.GetComment(ctx, root.ID)
	if got.ReplyCount != k {
		t.Fatalf("reply_count = %d, want %d", got.ReplyCount, k)
	}
}

func TestCreateComment_UnknownVideo(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.CreateComment(context.Background(), engagement.Comment{VideoID: "nope", UserID: "u1", Content: "x"})
	if !errors.Is(err, engagement.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateComment_CrossVideoParentRejected(t *testing.T) {
	s := NewMemoryStore()
	s.AddVideo("v1")
	s.AddVideo("v2")
	ctx := context.Background()

	onV1, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u1", Content: "root"})

	_, err := s.CreateComment(ctx, engagement.Comment{VideoID: "v2", UserID: "u2", ParentID: &onV1.ID, Content: "cross"})
	if !errors.Is(err, engagement.ErrInvalidParent) {
		t.Fatalf("expected ErrInvalidParent, got %v", err)
	}

	// Nothing was created and the parent count is untouched.
	got, _ := s.GetComment(ctx, onV1.ID)
	if got.ReplyCount != 0 {
		t.Fatalf("reply_count = %d after rejected reply, want 0", got.ReplyCount)
	}
	thread, _, _ := s.ListThread(ctx, "v2", 50, "")
	if len(thread) != 0 {
		t.Fatalf("v2 thread has %d comments, want 0", len(thread))
	}
}

func TestCreateComment_DeletedParentRejected(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()

	root, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u1", Content: "root"})
	if err := s.SoftDeleteComment(ctx, root.ID, "u1"); err != nil {
		t.Fatal(err)
	}

	_, err := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u2", ParentID: &root.ID, Content: "late"})
	if !errors.Is(err, engagement.ErrInvalidParent) {
		t.Fatalf("expected ErrInvalidParent, got %v", err)
	}
}

func TestSoftDelete_KeepsNodeAndReplyCount(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()

	root, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u1", Content: "root"})
	reply, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u2", ParentID: &root.ID, Content: "reply"})

	if err := s.SoftDeleteComment(ctx, reply.ID, "u2"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	// The deleted reply still counts toward the parent.
	got, _ := s.GetComment(ctx, root.ID)
	if got.ReplyCount != 1 {
		t.Fatalf("reply_count = %d after delete, want 1", got.ReplyCount)
	}

	// The node stays in the listing with its content hidden.
	replies, _, err := s.ListReplies(ctx, root.ID, 50, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(replies) != 1 {
		t.Fatalf("expected 1 reply node, got %d", len(replies))
	}
	if replies[0].Content != "[deleted]" || replies[0].Active() {
		t.Fatalf("deleted reply not hidden: %+v", replies[0])
	}
}

func TestSoftDelete_AuthorOnlyAndOnce(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()

	c, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u1", Content: "mine"})

	if err := s.SoftDeleteComment(ctx, c.ID, "u2"); !errors.Is(err, engagement.ErrNotFoundOrForbidden) {
		t.Fatalf("non-author delete: got %v", err)
	}
	if err := s.SoftDeleteComment(ctx, c.ID, "u1"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if err := s.SoftDeleteComment(ctx, c.ID, "u1"); !errors.Is(err, engagement.ErrNotFoundOrForbidden) {
		t.Fatalf("double delete: got %v", err)
	}
}

func TestUpdateContent_AuthorOnly(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()

	c, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u1", Content: "original"})

	if err := s.UpdateContent(ctx, c.ID, "u2", "hacked"); !errors.Is(err, engagement.ErrNotFoundOrForbidden) {
		t.Fatalf("non-author edit: got %v", err)
	}
	if err := s.UpdateContent(ctx, c.ID, "u1", "edited"); err != nil {
		t.Fatalf("author edit: %v", err)
	}

	got, _ := s.GetComment(ctx, c.ID)
	if got.Content != "edited" || got.UpdatedAt == nil {
		t.Fatalf("edit not applied: %+v", got)
	}
}

func TestReportComment(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()

	c, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u1", Content: "spam?"})

	for i := 0; i < 3; i++ {
		if err := s.ReportComment(ctx, c.ID); err != nil {
			t.Fatalf("report %d: %v", i, err)
		}
	}
	got, _ := s.GetComment(ctx, c.ID)
	if got.ReportCount != 3 {
		t.Fatalf("report_count = %d, want 3", got.ReportCount)
	}

	if err := s.ReportComment(ctx, "missing"); !errors.Is(err, engagement.ErrNotFound) {
		t.Fatalf("report missing: got %v", err)
	}
}

func TestListReplies_OrderAndCursor(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()

	root, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u1", Content: "root"})
	var ids []string
	for i := 0; i < 5; i++ {
		c, err := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u2", ParentID: &root.ID, Content: "r"})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, c.ID)
	}

	// First page, oldest first.
	page1, cursor, err := s.ListReplies(ctx, root.ID, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 2 || cursor == "" {
		t.Fatalf("page1: %d items, cursor %q", len(page1), cursor)
	}

	// Restart from the cursor and drain the rest.
	var rest []engagement.Comment
	for cursor != "" {
		var page []engagement.Comment
		page, cursor, err = s.ListReplies(ctx, root.ID, 2, cursor)
		if err != nil {
			t.Fatal(err)
		}
		rest = append(rest, page...)
	}

	all := append(page1, rest...)
	if len(all) != 5 {
		t.Fatalf("paged traversal returned %d replies, want 5", len(all))
	}
	seen := make(map[string]bool, len(all))
	for i, c := range all {
		if seen[c.ID] {
			t.Fatalf("cursor returned %s twice", c.ID)
		}
		seen[c.ID] = true
		if i > 0 && c.CreatedAt.Before(all[i-1].CreatedAt) {
			t.Fatalf("replies out of order at %d", i)
		}
	}

	if _, _, err := s.ListReplies(ctx, "missing", 10, ""); !errors.Is(err, engagement.ErrNotFound) {
		t.Fatalf("missing parent: got %v", err)
	}
}

func TestListThread_NewestFirst(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()

	first, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u1", Content: "old"})
	second, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u2", Content: "new"})
	// A reply must not appear among the roots.
	_, _ = s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u3", ParentID: &first.ID, Content: "reply"})

	roots, _, err := s.ListThread(ctx, "v1", 50, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	if roots[0].ID != second.ID || roots[1].ID != first.ID {
		t.Fatal("thread not newest-first")
	}
}

func TestReactionsOnComments(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()

	c, _ := s.CreateComment(ctx, engagement.Comment{VideoID: "v1", UserID: "u1", Content: "likeable"})
	e := &engagement.ReactionEngine{Store: s, Subjects: s}

	res, err := e.Toggle(ctx, engagement.CommentSubject(c.ID), "u2", engagement.DirLike)
	if err != nil {
		t.Fatalf("toggle on comment: %v", err)
	}
	if res.Counts.Likes != 1 {
		t.Fatalf("comment like_count = %d, want 1", res.Counts.Likes)
	}

	got, _ := s.GetComment(ctx, c.ID)
	if got.LikeCount != 1 {
		t.Fatalf("stored comment like_count = %d, want 1", got.LikeCount)
	}

	// Deleted comments are no longer reactable.
	if err := s.SoftDeleteComment(ctx, c.ID, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Toggle(ctx, engagement.CommentSubject(c.ID), "u3", engagement.DirLike); !errors.Is(err, engagement.ErrNotFound) {
		t.Fatalf("toggle on deleted comment: got %v", err)
	}
}

func TestToggle_RollsBackOnError(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()
	subject := engagement.VideoSubject("v1")

	sentinel := errors.New("boom")
	err := s.Toggle(ctx, subject, "u1", func(tx engagement.ReactionTx) error {
		if err := tx.SetState(ctx, subject, "u1", engagement.StateLiked); err != nil {
			return err
		}
		if err := tx.AdjustCounts(ctx, subject, 1, 0); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	st, counts, err := s.View(ctx, subject, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if st != engagement.StateNone || counts != (engagement.Counts{}) {
		t.Fatalf("writes leaked after rollback: state %s counts %+v", st, counts)
	}
}

func TestAdjustCounts_Underflow(t *testing.T) {
	s := newStoreWithVideo(t)
	ctx := context.Background()
	subject := engagement.VideoSubject("v1")

	err := s.Toggle(ctx, subject, "u1", func(tx engagement.ReactionTx) error {
		return tx.AdjustCounts(ctx, subject, -1, 0)
	})
	if !errors.Is(err, engagement.ErrCounterUnderflow) {
		t.Fatalf("expected ErrCounterUnderflow, got %v", err)
	}

	// The failed adjustment left the counter untouched.
	_, counts, _ := s.View(ctx, subject, "")
	if counts != (engagement.Counts{}) {
		t.Fatalf("counts after underflow: %+v", counts)
	}
}
