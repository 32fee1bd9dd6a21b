package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/video-platform/internal/engagement"
)

// MemoryStore is a development-only in-memory backend. It implements the
// reaction store, the comment store and the audit surface behind a single
// mutex, which makes every toggle and comment insert trivially atomic.
type MemoryStore struct {
	mu        sync.Mutex
	videos    map[string]engagement.Counts
	comments  map[string]engagement.Comment
	reactions map[reactionKey]engagement.State
	now       func() time.Time
}

type reactionKey struct {
	kind   engagement.SubjectKind
	id     string
	userID string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos:    make(map[string]engagement.Counts),
		comments:  make(map[string]engagement.Comment),
		reactions: make(map[reactionKey]engagement.State),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddVideo registers a video subject with zero counters. The video entity
// itself is owned by the video service; this store only tracks engagement
// counters for it.
func (s *MemoryStore) AddVideo(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		s.videos[id] = engagement.Counts{}
	}
}

// Toggle runs fn under the store mutex. An error from fn rolls back every
// write fn made, so partial application is never observable.
func (s *MemoryStore) Toggle(_ context.Context, _ engagement.Subject, _ string, fn func(tx engagement.ReactionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{s: s}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

// View returns the user's state and the subject's counters.
func (s *MemoryStore) View(_ context.Context, subject engagement.Subject, userID string) (engagement.State, engagement.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, ok := s.countsLocked(subject)
	if !ok {
		return "", engagement.Counts{}, engagement.ErrNotFound
	}
	st := engagement.StateNone
	if userID != "" {
		if cur, ok := s.reactions[reactionKey{subject.Kind, subject.ID, userID}]; ok {
			st = cur
		}
	}
	return st, counts, nil
}

// Exists reports whether the subject is reactable. Soft-deleted comments
// are not.
func (s *MemoryStore) Exists(_ context.Context, subject engagement.Subject) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch subject.Kind {
	case engagement.KindVideo:
		_, ok := s.videos[subject.ID]
		return ok, nil
	case engagement.KindComment:
		c, ok := s.comments[subject.ID]
		return ok && c.Active(), nil
	}
	return false, nil
}

func (s *MemoryStore) countsLocked(subject engagement.Subject) (engagement.Counts, bool) {
	switch subject.Kind {
	case engagement.KindVideo:
		c, ok := s.videos[subject.ID]
		return c, ok
	case engagement.KindComment:
		c, ok := s.comments[subject.ID]
		if !ok || !c.Active() {
			return engagement.Counts{}, false
		}
		return engagement.Counts{Likes: c.LikeCount, Dislikes: c.DislikeCount}, true
	}
	return engagement.Counts{}, false
}

// memoryTx mutates the store in place and records undo closures so Toggle
// can roll back on error.
type memoryTx struct {
	s    *MemoryStore
	undo []func()
}

func (t *memoryTx) GetState(_ context.Context, subject engagement.Subject, userID string) (engagement.State, error) {
	if _, ok := t.s.countsLocked(subject); !ok {
		return "", engagement.ErrNotFound
	}
	if st, ok := t.s.reactions[reactionKey{subject.Kind, subject.ID, userID}]; ok {
		return st, nil
	}
	return engagement.StateNone, nil
}

func (t *memoryTx) SetState(_ context.Context, subject engagement.Subject, userID string, next engagement.State) error {
	k := reactionKey{subject.Kind, subject.ID, userID}
	old, had := t.s.reactions[k]
	t.undo = append(t.undo, func() {
		if had {
			t.s.reactions[k] = old
		} else {
			delete(t.s.reactions, k)
		}
	})
	if next == engagement.StateNone {
		delete(t.s.reactions, k)
		return nil
	}
	t.s.reactions[k] = next
	return nil
}

func (t *memoryTx) GetCounts(_ context.Context, subject engagement.Subject) (engagement.Counts, error) {
	c, ok := t.s.countsLocked(subject)
	if !ok {
		return engagement.Counts{}, engagement.ErrNotFound
	}
	return c, nil
}

func (t *memoryTx) AdjustCounts(_ context.Context, subject engagement.Subject, likeDelta, dislikeDelta int) error {
	c, ok := t.s.countsLocked(subject)
	if !ok {
		return engagement.ErrNotFound
	}
	next := engagement.Counts{Likes: c.Likes + likeDelta, Dislikes: c.Dislikes + dislikeDelta}
	if next.Likes < 0 || next.Dislikes < 0 {
		return engagement.ErrCounterUnderflow
	}

	switch subject.Kind {
	case engagement.KindVideo:
		prev := t.s.videos[subject.ID]
		t.undo = append(t.undo, func() { t.s.videos[subject.ID] = prev })
		t.s.videos[subject.ID] = next
	case engagement.KindComment:
		prev := t.s.comments[subject.ID]
		t.undo = append(t.undo, func() { t.s.comments[subject.ID] = prev })
		cm := prev
		cm.LikeCount = next.Likes
		cm.DislikeCount = next.Dislikes
		t.s.comments[subject.ID] = cm
	}
	return nil
}

// CreateComment inserts a comment and, for replies, bumps the parent's
// reply count under the same lock.
func (s *MemoryStore) CreateComment(_ context.Context, c engagement.Comment) (engagement.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[c.VideoID]; !ok {
		return engagement.Comment{}, engagement.ErrNotFound
	}
	if c.ParentID != nil {
		p, ok := s.comments[*c.ParentID]
		if !ok || p.VideoID != c.VideoID || !p.Active() {
			return engagement.Comment{}, engagement.ErrInvalidParent
		}
		p.ReplyCount++
		s.comments[p.ID] = p
	}

	c.ID = uuid.NewString()
	c.CreatedAt = s.now()
	c.ReplyCount, c.ReportCount, c.LikeCount, c.DislikeCount = 0, 0, 0, 0
	c.UpdatedAt, c.DeletedAt = nil, nil
	s.comments[c.ID] = c
	return c, nil
}

func (s *MemoryStore) GetComment(_ context.Context, commentID string) (engagement.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return engagement.Comment{}, engagement.ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) UpdateContent(_ context.Context, commentID, userID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || c.UserID != userID || !c.Active() {
		return engagement.ErrNotFoundOrForbidden
	}
	c.Content = content
	now := s.now()
	c.UpdatedAt = &now
	s.comments[commentID] = c
	return nil
}

func (s *MemoryStore) SoftDeleteComment(_ context.Context, commentID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || c.UserID != userID || !c.Active() {
		return engagement.ErrNotFoundOrForbidden
	}
	c.Content = "[deleted]"
	now := s.now()
	c.DeletedAt = &now
	s.comments[commentID] = c
	return nil
}

func (s *MemoryStore) ReportComment(_ context.Context, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || !c.Active() {
		return engagement.ErrNotFound
	}
	c.ReportCount++
	s.comments[commentID] = c
	return nil
}

func (s *MemoryStore) ListReplies(_ context.Context, parentID string, limit int, cursor string) ([]engagement.Comment, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[parentID]; !ok {
		return nil, "", engagement.ErrNotFound
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	var replies []engagement.Comment
	for _, c := range s.comments {
		if c.ParentID != nil && *c.ParentID == parentID {
			replies = append(replies, c)
		}
	}
	sort.Slice(replies, func(i, j int) bool {
		if !replies[i].CreatedAt.Equal(replies[j].CreatedAt) {
			return replies[i].CreatedAt.Before(replies[j].CreatedAt)
		}
		return replies[i].ID < replies[j].ID
	})

	if cursor != "" {
		after, afterID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		i := sort.Search(len(replies), func(i int) bool {
			c := replies[i]
			if !c.CreatedAt.Equal(after) {
				return c.CreatedAt.After(after)
			}
			return c.ID > afterID
		})
		replies = replies[i:]
	}

	var next string
	if len(replies) > limit {
		replies = replies[:limit]
		last := replies[limit-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	if replies == nil {
		replies = []engagement.Comment{}
	}
	return replies, next, nil
}

func (s *MemoryStore) ListThread(_ context.Context, videoID string, limit int, cursor string) ([]engagement.Comment, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[videoID]; !ok {
		return nil, "", engagement.ErrNotFound
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	var roots []engagement.Comment
	for _, c := range s.comments {
		if c.VideoID == videoID && c.ParentID == nil {
			roots = append(roots, c)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if !roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].CreatedAt.After(roots[j].CreatedAt)
		}
		return roots[i].ID > roots[j].ID
	})

	if cursor != "" {
		before, beforeID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		i := sort.Search(len(roots), func(i int) bool {
			c := roots[i]
			if !c.CreatedAt.Equal(before) {
				return c.CreatedAt.Before(before)
			}
			return c.ID < beforeID
		})
		roots = roots[i:]
	}

	var next string
	if len(roots) > limit {
		roots = roots[:limit]
		last := roots[limit-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	if roots == nil {
		roots = []engagement.Comment{}
	}
	return roots, next, nil
}

// Audit surface, consumed by the consistency checker.

func (s *MemoryStore) AuditSubjects(_ context.Context) ([]engagement.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subjects := make([]engagement.Subject, 0, len(s.videos)+len(s.comments))
	for id := range s.videos {
		subjects = append(subjects, engagement.VideoSubject(id))
	}
	for id := range s.comments {
		subjects = append(subjects, engagement.CommentSubject(id))
	}
	return subjects, nil
}

func (s *MemoryStore) StoredCounts(_ context.Context, subject engagement.Subject) (engagement.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch subject.Kind {
	case engagement.KindVideo:
		if c, ok := s.videos[subject.ID]; ok {
			return c, nil
		}
	case engagement.KindComment:
		// Deleted comments keep their counters; audit them too.
		if c, ok := s.comments[subject.ID]; ok {
			return engagement.Counts{Likes: c.LikeCount, Dislikes: c.DislikeCount}, nil
		}
	}
	return engagement.Counts{}, engagement.ErrNotFound
}

func (s *MemoryStore) RecountReactions(_ context.Context, subject engagement.Subject) (engagement.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c engagement.Counts
	for k, st := range s.reactions {
		if k.kind != subject.Kind || k.id != subject.ID {
			continue
		}
		switch st {
		case engagement.StateLiked:
			c.Likes++
		case engagement.StateDisliked:
			c.Dislikes++
		}
	}
	return c, nil
}

func (s *MemoryStore) AuditComments(_ context.Context) ([]engagement.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]engagement.Comment, 0, len(s.comments))
	for _, c := range s.comments {
		out = append(out, c)
	}
	return out, nil
}
