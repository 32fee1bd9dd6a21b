// Package events publishes engagement domain events to NATS JetStream,
// fire-and-forget. Notification delivery consumes these asynchronously; a
// publish failure is logged and never rolls back the transaction that
// produced the event.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/video-platform/internal/engagement"
)

const (
	SubjectReactionChanged = "engagement.reaction.changed"
	SubjectCommentAdded    = "engagement.comment.added"
)

// ReactionChangedEvent records one completed toggle transition.
type ReactionChangedEvent struct {
	EventID     string    `json:"event_id"`
	SubjectKind string    `json:"subject_kind"`
	SubjectID   string    `json:"subject_id"`
	UserID      string    `json:"user_id"`
	OldState    string    `json:"old_state"`
	NewState    string    `json:"new_state"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// CommentAddedEvent records one new comment node.
type CommentAddedEvent struct {
	EventID    string    `json:"event_id"`
	CommentID  string    `json:"comment_id"`
	VideoID    string    `json:"video_id"`
	ParentID   *string   `json:"parent_id,omitempty"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher implements engagement.Events on top of JetStream. A nil
// Publisher or a nil JetStream context is a safe no-op, so services without
// NATS (and tests) can pass one through unchanged.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
}

var _ engagement.Events = (*Publisher)(nil)

func New(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	return &Publisher{js: js, log: log}
}

func (p *Publisher) ReactionChanged(subject engagement.Subject, userID string, old, next engagement.State) {
	p.publish(SubjectReactionChanged, ReactionChangedEvent{
		EventID:     uuid.NewString(),
		SubjectKind: string(subject.Kind),
		SubjectID:   subject.ID,
		UserID:      userID,
		OldState:    string(old),
		NewState:    string(next),
		OccurredAt:  time.Now().UTC(),
	})
}

func (p *Publisher) CommentAdded(c engagement.Comment) {
	p.publish(SubjectCommentAdded, CommentAddedEvent{
		EventID:    uuid.NewString(),
		CommentID:  c.ID,
		VideoID:    c.VideoID,
		ParentID:   c.ParentID,
		UserID:     c.UserID,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *Publisher) publish(subject string, ev any) {
	if p == nil || p.js == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("events: marshal failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}
