package engagement_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/video-platform/internal/engagement"
	"github.com/example/video-platform/internal/engagement/store"
)

// recorder captures emitted domain events.
type recorder struct {
	mu        sync.Mutex
	reactions []string
	comments  []string
}

func (r *recorder) ReactionChanged(subject engagement.Subject, userID string, old, next engagement.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactions = append(r.reactions, string(old)+"→"+string(next))
}

func (r *recorder) CommentAdded(c engagement.Comment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments = append(r.comments, c.ID)
}

func newEngine(t *testing.T) (*engagement.ReactionEngine, *store.MemoryStore, *recorder) {
	t.Helper()
	s := store.NewMemoryStore()
	rec := &recorder{}
	return &engagement.ReactionEngine{Store: s, Subjects: s, Events: rec}, s, rec
}

func TestToggle_SetSwitchRetract(t *testing.T) {
	e, s, _ := newEngine(t)
	s.AddVideo("v1")
	ctx := context.Background()
	subject := engagement.VideoSubject("v1")

	res, err := e.Toggle(ctx, subject, "user-a", engagement.DirLike)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if res.State != engagement.StateLiked || res.Counts != (engagement.Counts{Likes: 1}) {
		t.Fatalf("set: got state %s counts %+v", res.State, res.Counts)
	}

	res, err = e.Toggle(ctx, subject, "user-a", engagement.DirDislike)
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if res.State != engagement.StateDisliked || res.Counts != (engagement.Counts{Dislikes: 1}) {
		t.Fatalf("switch: got state %s counts %+v", res.State, res.Counts)
	}

	res, err = e.Toggle(ctx, subject, "user-a", engagement.DirDislike)
	if err != nil {
		t.Fatalf("retract: %v", err)
	}
	if res.State != engagement.StateNone || res.Counts != (engagement.Counts{}) {
		t.Fatalf("retract: got state %s counts %+v", res.State, res.Counts)
	}
}

// Scenario from the product requirements: subject at (2,0), a fresh user
// dislikes, then dislikes again.
func TestToggle_DislikeThenRetractScenario(t *testing.T) {
	e, s, _ := newEngine(t)
	s.AddVideo("v1")
	ctx := context.Background()
	subject := engagement.VideoSubject("v1")

	for _, u := range []string{"u1", "u2"} {
		if _, err := e.Toggle(ctx, subject, u, engagement.DirLike); err != nil {
			t.Fatalf("seed like: %v", err)
		}
	}

	res, err := e.Toggle(ctx, subject, "u3", engagement.DirDislike)
	if err != nil {
		t.Fatalf("dislike: %v", err)
	}
	if res.State != engagement.StateDisliked || res.Counts != (engagement.Counts{Likes: 2, Dislikes: 1}) {
		t.Fatalf("dislike: got state %s counts %+v", res.State, res.Counts)
	}

	res, err = e.Toggle(ctx, subject, "u3", engagement.DirDislike)
	if err != nil {
		t.Fatalf("retract: %v", err)
	}
	if res.State != engagement.StateNone || res.Counts != (engagement.Counts{Likes: 2}) {
		t.Fatalf("retract: got state %s counts %+v", res.State, res.Counts)
	}
}

// A like followed by a dislike from the same fresh user moves the count,
// it never double-counts.
func TestToggle_SwitchConservesTotal(t *testing.T) {
	e, s, _ := newEngine(t)
	s.AddVideo("v1")
	ctx := context.Background()
	subject := engagement.VideoSubject("v1")

	if _, err := e.Toggle(ctx, subject, "u1", engagement.DirLike); err != nil {
		t.Fatal(err)
	}
	res, err := e.Toggle(ctx, subject, "u1", engagement.DirDislike)
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts != (engagement.Counts{Likes: 0, Dislikes: 1}) {
		t.Fatalf("after switch: counts %+v, want (0,1)", res.Counts)
	}
}

func TestToggle_UnknownSubject(t *testing.T) {
	e, _, _ := newEngine(t)
	_, err := e.Toggle(context.Background(), engagement.VideoSubject("missing"), "u1", engagement.DirLike)
	if !errors.Is(err, engagement.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestToggle_InvalidDirection(t *testing.T) {
	e, s, _ := newEngine(t)
	s.AddVideo("v1")
	if _, err := e.Toggle(context.Background(), engagement.VideoSubject("v1"), "u1", engagement.Direction("meh")); err == nil {
		t.Fatal("expected error for invalid direction")
	}
}

func TestToggle_EmitsReactionChanged(t *testing.T) {
	e, s, rec := newEngine(t)
	s.AddVideo("v1")
	ctx := context.Background()
	subject := engagement.VideoSubject("v1")

	_, _ = e.Toggle(ctx, subject, "u1", engagement.DirLike)
	_, _ = e.Toggle(ctx, subject, "u1", engagement.DirLike)

	want := []string{"none→liked", "liked→none"}
	if len(rec.reactions) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(rec.reactions))
	}
	for i := range want {
		if rec.reactions[i] != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, rec.reactions[i], want[i])
		}
	}
}

// N users liking the same subject concurrently must land on exactly N.
func TestToggle_ConcurrentFirstLikes(t *testing.T) {
	e, s, _ := newEngine(t)
	s.AddVideo("v1")
	subject := engagement.VideoSubject("v1")

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Toggle(context.Background(), subject, userN(i), engagement.DirLike)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}

	res, err := e.View(context.Background(), subject, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts.Likes != n {
		t.Fatalf("like_count = %d, want %d", res.Counts.Likes, n)
	}
}

// An odd number of same-direction toggles from one user must land on
// exactly one liked state and one counted like, no matter how the toggles
// interleave. A store that lets two first-time toggles both observe "no
// reaction yet" double-counts here.
func TestToggle_SameUserConcurrentToggles(t *testing.T) {
	e, s, _ := newEngine(t)
	s.AddVideo("v1")
	subject := engagement.VideoSubject("v1")

	const n = 7
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Toggle(context.Background(), subject, "u1", engagement.DirLike); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	res, err := e.View(context.Background(), subject, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if res.State != engagement.StateLiked {
		t.Fatalf("state after %d toggles = %s, want liked", n, res.State)
	}
	if res.Counts != (engagement.Counts{Likes: 1}) {
		t.Fatalf("counts after %d toggles = %+v, want exactly one like", n, res.Counts)
	}

	actual, err := s.RecountReactions(context.Background(), subject)
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts != actual {
		t.Fatalf("counters drifted: stored %+v, recount %+v", res.Counts, actual)
	}
}

// Concurrent mixed toggles must leave the counters matching a recount of
// the reaction rows, whatever the interleaving.
func TestToggle_ConcurrentMixedConsistency(t *testing.T) {
	e, s, _ := newEngine(t)
	s.AddVideo("v1")
	subject := engagement.VideoSubject("v1")

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := userN(i % 10)
			dirs := []engagement.Direction{engagement.DirLike, engagement.DirDislike}
			_, _ = e.Toggle(context.Background(), subject, u, dirs[i%2])
		}(i)
	}
	wg.Wait()

	stored, err := s.StoredCounts(context.Background(), subject)
	if err != nil {
		t.Fatal(err)
	}
	actual, err := s.RecountReactions(context.Background(), subject)
	if err != nil {
		t.Fatal(err)
	}
	if stored != actual {
		t.Fatalf("counters drifted: stored %+v, recount %+v", stored, actual)
	}
	if stored.Likes < 0 || stored.Dislikes < 0 {
		t.Fatalf("negative counters: %+v", stored)
	}
}

func TestView_AnonymousAndAuthenticated(t *testing.T) {
	e, s, _ := newEngine(t)
	s.AddVideo("v1")
	ctx := context.Background()
	subject := engagement.VideoSubject("v1")

	if _, err := e.Toggle(ctx, subject, "u1", engagement.DirLike); err != nil {
		t.Fatal(err)
	}

	anon, err := e.View(ctx, subject, "")
	if err != nil {
		t.Fatal(err)
	}
	if anon.State != engagement.StateNone || anon.Counts.Likes != 1 {
		t.Fatalf("anonymous view: %+v", anon)
	}

	own, err := e.View(ctx, subject, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if own.State != engagement.StateLiked {
		t.Fatalf("authenticated view state = %s, want liked", own.State)
	}
}

func userN(i int) string {
	return "user-" + string(rune('a'+i%26)) + "-" + string(rune('0'+i/26))
}
