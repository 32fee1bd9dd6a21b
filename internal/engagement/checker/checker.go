// Package checker recomputes denormalized engagement counters from raw
// rows and reports drift against the stored values. It is the only place
// allowed to recompute lazily; the write path must keep counters exact.
package checker

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/example/video-platform/internal/engagement"
)

// AuditStore is the read-only surface the checker needs from a backend.
type AuditStore interface {
	AuditSubjects(ctx context.Context) ([]engagement.Subject, error)
	StoredCounts(ctx context.Context, subject engagement.Subject) (engagement.Counts, error)
	RecountReactions(ctx context.Context, subject engagement.Subject) (engagement.Counts, error)
	AuditComments(ctx context.Context) ([]engagement.Comment, error)
}

// Drift is one stored counter that disagrees with recomputation.
type Drift struct {
	Subject engagement.Subject `json:"subject"`
	Field   string             `json:"field"`
	Stored  int                `json:"stored"`
	Actual  int                `json:"actual"`
}

// Report is the outcome of one consistency run.
type Report struct {
	SubjectsChecked int     `json:"subjects_checked"`
	CommentsChecked int     `json:"comments_checked"`
	Drifts          []Drift `json:"drifts,omitempty"`
}

// Clean reports whether no drift was found.
func (r Report) Clean() bool { return len(r.Drifts) == 0 }

// Checker verifies like/dislike counters against reaction rows and reply
// counts against the comment tree's structure.
type Checker struct {
	Store AuditStore
	// Parallelism bounds concurrent per-subject recounts. Zero means 8.
	Parallelism int
}

// Run audits every subject and every comment. It returns an error only on
// store failure; drift is data, not an error.
func (c *Checker) Run(ctx context.Context) (Report, error) {
	subjects, err := c.Store.AuditSubjects(ctx)
	if err != nil {
		return Report{}, err
	}

	limit := c.Parallelism
	if limit <= 0 {
		limit = 8
	}

	var mu sync.Mutex
	var drifts []Drift
	add := func(d Drift) {
		mu.Lock()
		drifts = append(drifts, d)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, subject := range subjects {
		subject := subject
		g.Go(func() error {
			stored, err := c.Store.StoredCounts(gctx, subject)
			if err != nil {
				return err
			}
			actual, err := c.Store.RecountReactions(gctx, subject)
			if err != nil {
				return err
			}
			if stored.Likes != actual.Likes {
				add(Drift{Subject: subject, Field: "like_count", Stored: stored.Likes, Actual: actual.Likes})
			}
			if stored.Dislikes != actual.Dislikes {
				add(Drift{Subject: subject, Field: "dislike_count", Stored: stored.Dislikes, Actual: actual.Dislikes})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	comments, err := c.Store.AuditComments(ctx)
	if err != nil {
		return Report{}, err
	}

	// reply_count counts every child row, deleted or not: soft deletion
	// keeps a reply's slot in the thread.
	children := make(map[string]int, len(comments))
	for _, cm := range comments {
		if cm.ParentID != nil {
			children[*cm.ParentID]++
		}
	}
	for _, cm := range comments {
		if actual := children[cm.ID]; cm.ReplyCount != actual {
			drifts = append(drifts, Drift{
				Subject: engagement.CommentSubject(cm.ID),
				Field:   "reply_count",
				Stored:  cm.ReplyCount,
				Actual:  actual,
			})
		}
	}

	return Report{
		SubjectsChecked: len(subjects),
		CommentsChecked: len(comments),
		Drifts:          drifts,
	}, nil
}
