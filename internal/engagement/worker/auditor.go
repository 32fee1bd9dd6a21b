// Package worker hosts background jobs of the engagement service.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/video-platform/internal/engagement/checker"
)

// StartAuditor runs the consistency checker every interval until ctx is
// cancelled. Drift is logged, never silently repaired: a drifting counter
// means a bug in the write path, and tests treat it as fatal.
func StartAuditor(ctx context.Context, c *checker.Checker, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := c.Run(ctx)
			if err != nil {
				log.Error("consistency audit failed", zap.Error(err))
				continue
			}
			if report.Clean() {
				log.Info("consistency audit clean",
					zap.Int("subjects", report.SubjectsChecked),
					zap.Int("comments", report.CommentsChecked))
				continue
			}
			for _, d := range report.Drifts {
				log.Warn("counter drift detected",
					zap.String("subject_kind", string(d.Subject.Kind)),
					zap.String("subject_id", d.Subject.ID),
					zap.String("field", d.Field),
					zap.Int("stored", d.Stored),
					zap.Int("actual", d.Actual))
			}
		}
	}
}
