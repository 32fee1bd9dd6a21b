package engagement

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReactionTx is the atomic unit a toggle runs inside. All four operations
// observe and mutate the same isolated snapshot; either every write in the
// unit commits or none does.
type ReactionTx interface {
	// GetState returns the user's current state for the subject,
	// StateNone if the user never reacted.
	GetState(ctx context.Context, subject Subject, userID string) (State, error)
	// SetState writes the user's new state. StateNone retracts the
	// reaction.
	SetState(ctx context.Context, subject Subject, userID string, s State) error
	// GetCounts returns the subject's denormalized counters.
	GetCounts(ctx context.Context, subject Subject) (Counts, error)
	// AdjustCounts applies counter deltas. It returns ErrNotFound if the
	// subject does not exist and ErrCounterUnderflow if a counter would
	// go negative.
	AdjustCounts(ctx context.Context, subject Subject, likeDelta, dislikeDelta int) error
}

// ReactionStore provides the atomic unit for toggles plus a plain read
// path. Toggle must serialize invocations for the same (subject, user)
// pair and apply counter adjustments without lost updates.
type ReactionStore interface {
	Toggle(ctx context.Context, subject Subject, userID string, fn func(tx ReactionTx) error) error
	// View returns the user's state and the subject's counters outside
	// any toggle. userID may be empty for an anonymous read.
	View(ctx context.Context, subject Subject, userID string) (State, Counts, error)
}

// SubjectChecker is the narrow view of the services that own videos and
// comments. The engine consults it before touching reaction state.
type SubjectChecker interface {
	Exists(ctx context.Context, subject Subject) (bool, error)
}

// Events receives domain events after a successful commit. Implementations
// must not block; a failure to deliver never rolls back the transaction
// that produced the event.
type Events interface {
	ReactionChanged(subject Subject, userID string, old, next State)
	CommentAdded(c Comment)
}

// ToggleResult reports a completed transition and the counters after it.
type ToggleResult struct {
	Subject  Subject `json:"subject"`
	OldState State   `json:"old_state"`
	State    State   `json:"state"`
	Counts   Counts  `json:"counts"`
}

// ViewResult is the read-side view of a subject's reactions.
type ViewResult struct {
	Subject Subject `json:"subject"`
	State   State   `json:"state"`
	Counts  Counts  `json:"counts"`
}

// ReactionEngine runs the like/dislike state machine for every subject
// kind. Videos and comments share this single code path; only the Subject
// passed in differs.
type ReactionEngine struct {
	Store    ReactionStore
	Subjects SubjectChecker // optional; nil relies on the store's ErrNotFound
	Events   Events         // optional
	Log      *zap.Logger    // optional
}

// Toggle applies dir for (subject, userID): retract when the user already
// holds dir, switch when they hold the opposite, set otherwise. Exactly one
// state write and one counter adjustment happen, atomically.
func (e *ReactionEngine) Toggle(ctx context.Context, subject Subject, userID string, dir Direction) (ToggleResult, error) {
	if !dir.Valid() {
		return ToggleResult{}, fmt.Errorf("unknown direction %q", dir)
	}
	if e.Subjects != nil {
		ok, err := e.Subjects.Exists(ctx, subject)
		if err != nil {
			return ToggleResult{}, fmt.Errorf("check subject: %w", err)
		}
		if !ok {
			return ToggleResult{}, ErrNotFound
		}
	}

	res := ToggleResult{Subject: subject}
	err := e.Store.Toggle(ctx, subject, userID, func(tx ReactionTx) error {
		old, err := tx.GetState(ctx, subject, userID)
		if err != nil {
			return err
		}
		next := Next(old, dir)
		if err := tx.SetState(ctx, subject, userID, next); err != nil {
			return err
		}
		likeDelta, dislikeDelta := Deltas(old, next)
		if err := tx.AdjustCounts(ctx, subject, likeDelta, dislikeDelta); err != nil {
			return err
		}
		counts, err := tx.GetCounts(ctx, subject)
		if err != nil {
			return err
		}
		res.OldState, res.State, res.Counts = old, next, counts
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}

	if e.Events != nil {
		e.Events.ReactionChanged(subject, userID, res.OldState, res.State)
	}
	if e.Log != nil {
		e.Log.Debug("reaction toggled",
			zap.String("subject_kind", string(subject.Kind)),
			zap.String("subject_id", subject.ID),
			zap.String("old_state", string(res.OldState)),
			zap.String("state", string(res.State)))
	}
	return res, nil
}

// View returns the subject's counters and, when userID is non-empty, the
// user's current state.
func (e *ReactionEngine) View(ctx context.Context, subject Subject, userID string) (ViewResult, error) {
	st, counts, err := e.Store.View(ctx, subject, userID)
	if err != nil {
		return ViewResult{}, err
	}
	return ViewResult{Subject: subject, State: st, Counts: counts}, nil
}
