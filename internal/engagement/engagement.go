// Package engagement implements the social engagement core of the video
// platform: like/dislike reactions over videos and comments with
// denormalized counters, and the threaded comment tree.
package engagement

import (
	"errors"
	"time"
)

// SubjectKind identifies the entity type a reaction attaches to.
type SubjectKind string

const (
	KindVideo   SubjectKind = "video"
	KindComment SubjectKind = "comment"
)

// Subject identifies one reactable entity.
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

func VideoSubject(id string) Subject   { return Subject{Kind: KindVideo, ID: id} }
func CommentSubject(id string) Subject { return Subject{Kind: KindComment, ID: id} }

// State is one user's current disposition toward a subject. A user never
// holds more than one non-none state per subject.
type State string

const (
	StateNone     State = "none"
	StateLiked    State = "liked"
	StateDisliked State = "disliked"
)

// Direction is the action a user takes on a subject.
type Direction string

const (
	DirLike    Direction = "like"
	DirDislike Direction = "dislike"
)

// Valid reports whether d is a recognised toggle direction.
func (d Direction) Valid() bool { return d == DirLike || d == DirDislike }

// Counts are the denormalized aggregate counters of a subject. They stay
// non-negative; an adjustment below zero is a store invariant violation.
type Counts struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// Comment is one node of a video's comment tree. A nil ParentID marks a
// root comment. DeletedAt set marks a soft-deleted node: its content is
// hidden but the node stays in the tree, and it keeps counting toward its
// parent's reply count so thread numbering is stable.
type Comment struct {
	ID           string     `json:"id"`
	VideoID      string     `json:"video_id"`
	UserID       string     `json:"user_id"`
	ParentID     *string    `json:"parent_id,omitempty"`
	Content      string     `json:"content"`
	ReplyCount   int        `json:"reply_count"`
	ReportCount  int        `json:"report_count"`
	LikeCount    int        `json:"like_count"`
	DislikeCount int        `json:"dislike_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Active reports whether the comment is still visible (not soft-deleted).
func (c Comment) Active() bool { return c.DeletedAt == nil }

// Sentinel errors of the engagement core.
var (
	// ErrNotFound means the subject or comment does not exist.
	ErrNotFound = errors.New("subject not found")

	// ErrInvalidParent means the parent comment is missing, soft-deleted,
	// or belongs to a different video.
	ErrInvalidParent = errors.New("invalid parent comment")

	// ErrCounterUnderflow means an adjustment would drive a counter
	// negative. It signals a corrupted counter, never a caller mistake.
	ErrCounterUnderflow = errors.New("counter underflow")

	// ErrBadCursor means a pagination cursor could not be decoded.
	ErrBadCursor = errors.New("invalid cursor")

	// ErrNotFoundOrForbidden means the comment does not exist or is not
	// owned by the acting user.
	ErrNotFoundOrForbidden = errors.New("comment not found or not owned by user")
)
