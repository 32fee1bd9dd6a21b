package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/video-platform/internal/engagement"
)

// PostgresStore persists reactions and comments in Postgres. See schema.sql
// for the tables it expects.
//
// Toggles run in one transaction that locks the subject's counter row
// before reading reaction state. The reaction row alone cannot carry the
// lock: a first-time toggle has no row yet, so two concurrent toggles for
// the same (subject, user) pair would both read none and double-apply
// their deltas. The subject row always exists, so its lock serializes
// every toggle touching the subject, and counter adjustments are relative
// UPDATEs under that same lock. CHECK constraints on the counter columns
// turn any underflow into an error instead of a negative counter.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const checkViolation = "23514"

func (s *PostgresStore) Toggle(ctx context.Context, _ engagement.Subject, _ string, fn func(tx engagement.ReactionTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgReactionTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) View(ctx context.Context, subject engagement.Subject, userID string) (engagement.State, engagement.Counts, error) {
	counts, err := queryCounts(ctx, s.pool, subject)
	if err != nil {
		return "", engagement.Counts{}, err
	}

	st := engagement.StateNone
	if userID != "" {
		const q = `SELECT state FROM reactions
		           WHERE subject_kind = $1 AND subject_id = $2 AND user_id = $3`
		var raw string
		err := s.pool.QueryRow(ctx, q, subject.Kind, subject.ID, userID).Scan(&raw)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return "", engagement.Counts{}, err
		default:
			st = engagement.State(raw)
		}
	}
	return st, counts, nil
}

// Exists reports whether the subject is reactable. Soft-deleted comments
// are not.
func (s *PostgresStore) Exists(ctx context.Context, subject engagement.Subject) (bool, error) {
	var q string
	switch subject.Kind {
	case engagement.KindVideo:
		q = `SELECT EXISTS(SELECT 1 FROM videos WHERE id = $1)`
	case engagement.KindComment:
		q = `SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1 AND deleted_at IS NULL)`
	default:
		return false, nil
	}
	var ok bool
	if err := s.pool.QueryRow(ctx, q, subject.ID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryCounts(ctx context.Context, q rowQuerier, subject engagement.Subject) (engagement.Counts, error) {
	var sql string
	switch subject.Kind {
	case engagement.KindVideo:
		sql = `SELECT like_count, dislike_count FROM videos WHERE id = $1`
	case engagement.KindComment:
		sql = `SELECT like_count, dislike_count FROM comments WHERE id = $1 AND deleted_at IS NULL`
	default:
		return engagement.Counts{}, engagement.ErrNotFound
	}
	var c engagement.Counts
	err := q.QueryRow(ctx, sql, subject.ID).Scan(&c.Likes, &c.Dislikes)
	if errors.Is(err, pgx.ErrNoRows) {
		return engagement.Counts{}, engagement.ErrNotFound
	}
	return c, err
}

type pgReactionTx struct {
	tx pgx.Tx
}

// lockSubject takes the subject counter row lock for the rest of the
// transaction. Every toggle acquires it before reading reaction state, so
// toggles on the same subject run one at a time even when the caller has
// no reaction row yet.
func (t *pgReactionTx) lockSubject(ctx context.Context, subject engagement.Subject) error {
	var q string
	switch subject.Kind {
	case engagement.KindVideo:
		q = `SELECT 1 FROM videos WHERE id = $1 FOR UPDATE`
	case engagement.KindComment:
		q = `SELECT 1 FROM comments WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	default:
		return engagement.ErrNotFound
	}
	var one int
	err := t.tx.QueryRow(ctx, q, subject.ID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return engagement.ErrNotFound
	}
	return err
}

func (t *pgReactionTx) GetState(ctx context.Context, subject engagement.Subject, userID string) (engagement.State, error) {
	if err := t.lockSubject(ctx, subject); err != nil {
		return "", err
	}
	const q = `SELECT state FROM reactions
	           WHERE subject_kind = $1 AND subject_id = $2 AND user_id = $3`
	var raw string
	err := t.tx.QueryRow(ctx, q, subject.Kind, subject.ID, userID).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return engagement.StateNone, nil
	case err != nil:
		return "", err
	}
	return engagement.State(raw), nil
}

func (t *pgReactionTx) SetState(ctx context.Context, subject engagement.Subject, userID string, next engagement.State) error {
	if next == engagement.StateNone {
		_, err := t.tx.Exec(ctx,
			`DELETE FROM reactions WHERE subject_kind = $1 AND subject_id = $2 AND user_id = $3`,
			subject.Kind, subject.ID, userID)
		return err
	}
	const q = `INSERT INTO reactions (subject_kind, subject_id, user_id, state)
	           VALUES ($1, $2, $3, $4)
	           ON CONFLICT (subject_kind, subject_id, user_id)
	           DO UPDATE SET state = EXCLUDED.state, updated_at = now()`
	_, err := t.tx.Exec(ctx, q, subject.Kind, subject.ID, userID, string(next))
	return err
}

func (t *pgReactionTx) GetCounts(ctx context.Context, subject engagement.Subject) (engagement.Counts, error) {
	return queryCounts(ctx, t.tx, subject)
}

func (t *pgReactionTx) AdjustCounts(ctx context.Context, subject engagement.Subject, likeDelta, dislikeDelta int) error {
	var q string
	switch subject.Kind {
	case engagement.KindVideo:
		q = `UPDATE videos SET like_count = like_count + $1, dislike_count = dislike_count + $2
		     WHERE id = $3`
	case engagement.KindComment:
		q = `UPDATE comments SET like_count = like_count + $1, dislike_count = dislike_count + $2
		     WHERE id = $3 AND deleted_at IS NULL`
	default:
		return engagement.ErrNotFound
	}
	ct, err := t.tx.Exec(ctx, q, likeDelta, dislikeDelta, subject.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
			return engagement.ErrCounterUnderflow
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return engagement.ErrNotFound
	}
	return nil
}

const commentColumns = `id, video_id, user_id, parent_id, content,
	reply_count, report_count, like_count, dislike_count,
	created_at, updated_at, deleted_at`

func scanComment(row pgx.Row) (engagement.Comment, error) {
	var c engagement.Comment
	err := row.Scan(&c.ID, &c.VideoID, &c.UserID, &c.ParentID, &c.Content,
		&c.ReplyCount, &c.ReportCount, &c.LikeCount, &c.DislikeCount,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	return c, err
}

// CreateComment inserts a comment and, for replies, bumps the parent's
// reply count in the same transaction. The parent row is locked first so a
// concurrent soft delete cannot slip between validation and the insert.
func (s *PostgresStore) CreateComment(ctx context.Context, c engagement.Comment) (engagement.Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return engagement.Comment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var videoExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM videos WHERE id = $1)`, c.VideoID).Scan(&videoExists); err != nil {
		return engagement.Comment{}, err
	}
	if !videoExists {
		return engagement.Comment{}, engagement.ErrNotFound
	}

	if c.ParentID != nil {
		var parentVideoID string
		var deleted bool
		const q = `SELECT video_id, deleted_at IS NOT NULL FROM comments WHERE id = $1 FOR UPDATE`
		err := tx.QueryRow(ctx, q, *c.ParentID).Scan(&parentVideoID, &deleted)
		if errors.Is(err, pgx.ErrNoRows) {
			return engagement.Comment{}, engagement.ErrInvalidParent
		}
		if err != nil {
			return engagement.Comment{}, err
		}
		if parentVideoID != c.VideoID || deleted {
			return engagement.Comment{}, engagement.ErrInvalidParent
		}
		if _, err := tx.Exec(ctx,
			`UPDATE comments SET reply_count = reply_count + 1 WHERE id = $1`, *c.ParentID); err != nil {
			return engagement.Comment{}, err
		}
	}

	const insert = `INSERT INTO comments (id, video_id, user_id, parent_id, content)
	                VALUES ($1, $2, $3, $4, $5)
	                RETURNING ` + commentColumns
	created, err := scanComment(tx.QueryRow(ctx, insert, uuid.NewString(), c.VideoID, c.UserID, c.ParentID, c.Content))
	if err != nil {
		return engagement.Comment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return engagement.Comment{}, err
	}
	return created, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (engagement.Comment, error) {
	q := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`
	c, err := scanComment(s.pool.QueryRow(ctx, q, commentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return engagement.Comment{}, engagement.ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) UpdateContent(ctx context.Context, commentID, userID, content string) error {
	const q = `UPDATE comments SET content = $1, updated_at = now()
	           WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL`
	ct, err := s.pool.Exec(ctx, q, content, commentID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return engagement.ErrNotFoundOrForbidden
	}
	return nil
}

// SoftDeleteComment hides the comment but keeps the row, and leaves the
// parent's reply count untouched.
func (s *PostgresStore) SoftDeleteComment(ctx context.Context, commentID, userID string) error {
	const q = `UPDATE comments SET content = '[deleted]', deleted_at = now()
	           WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`
	ct, err := s.pool.Exec(ctx, q, commentID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return engagement.ErrNotFoundOrForbidden
	}
	return nil
}

func (s *PostgresStore) ReportComment(ctx context.Context, commentID string) error {
	const q = `UPDATE comments SET report_count = report_count + 1
	           WHERE id = $1 AND deleted_at IS NULL`
	ct, err := s.pool.Exec(ctx, q, commentID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return engagement.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListReplies(ctx context.Context, parentID string, limit int, cursor string) ([]engagement.Comment, string, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)`, parentID).Scan(&exists); err != nil {
		return nil, "", err
	}
	if !exists {
		return nil, "", engagement.ErrNotFound
	}

	var q string
	var args []any
	if cursor == "" {
		q = `SELECT ` + commentColumns + ` FROM comments
		     WHERE parent_id = $1
		     ORDER BY created_at ASC, id ASC
		     LIMIT $2`
		args = []any{parentID, limit + 1}
	} else {
		after, afterID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		q = `SELECT ` + commentColumns + ` FROM comments
		     WHERE parent_id = $1 AND (created_at, id) > ($3, $4)
		     ORDER BY created_at ASC, id ASC
		     LIMIT $2`
		args = []any{parentID, limit + 1, after, afterID}
	}
	return s.page(ctx, q, limit, args...)
}

func (s *PostgresStore) ListThread(ctx context.Context, videoID string, limit int, cursor string) ([]engagement.Comment, string, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM videos WHERE id = $1)`, videoID).Scan(&exists); err != nil {
		return nil, "", err
	}
	if !exists {
		return nil, "", engagement.ErrNotFound
	}

	var q string
	var args []any
	if cursor == "" {
		q = `SELECT ` + commentColumns + ` FROM comments
		     WHERE video_id = $1 AND parent_id IS NULL
		     ORDER BY created_at DESC, id DESC
		     LIMIT $2`
		args = []any{videoID, limit + 1}
	} else {
		before, beforeID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		q = `SELECT ` + commentColumns + ` FROM comments
		     WHERE video_id = $1 AND parent_id IS NULL AND (created_at, id) < ($3, $4)
		     ORDER BY created_at DESC, id DESC
		     LIMIT $2`
		args = []any{videoID, limit + 1, before, beforeID}
	}
	return s.page(ctx, q, limit, args...)
}

func (s *PostgresStore) page(ctx context.Context, q string, limit int, args ...any) ([]engagement.Comment, string, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	out := []engagement.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) > limit {
		out = out[:limit]
		last := out[limit-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	return out, next, nil
}

// Audit surface, consumed by the consistency checker.

func (s *PostgresStore) AuditSubjects(ctx context.Context) ([]engagement.Subject, error) {
	const q = `SELECT 'video', id FROM videos
	           UNION ALL
	           SELECT 'comment', id FROM comments`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engagement.Subject
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return nil, err
		}
		out = append(out, engagement.Subject{Kind: engagement.SubjectKind(kind), ID: id})
	}
	return out, rows.Err()
}

func (s *PostgresStore) StoredCounts(ctx context.Context, subject engagement.Subject) (engagement.Counts, error) {
	var q string
	switch subject.Kind {
	case engagement.KindVideo:
		q = `SELECT like_count, dislike_count FROM videos WHERE id = $1`
	case engagement.KindComment:
		// Deleted comments keep their counters; audit them too.
		q = `SELECT like_count, dislike_count FROM comments WHERE id = $1`
	default:
		return engagement.Counts{}, engagement.ErrNotFound
	}
	var c engagement.Counts
	err := s.pool.QueryRow(ctx, q, subject.ID).Scan(&c.Likes, &c.Dislikes)
	if errors.Is(err, pgx.ErrNoRows) {
		return engagement.Counts{}, engagement.ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) RecountReactions(ctx context.Context, subject engagement.Subject) (engagement.Counts, error) {
	const q = `SELECT
	             COUNT(*) FILTER (WHERE state = 'liked'),
	             COUNT(*) FILTER (WHERE state = 'disliked')
	           FROM reactions
	           WHERE subject_kind = $1 AND subject_id = $2`
	var c engagement.Counts
	err := s.pool.QueryRow(ctx, q, subject.Kind, subject.ID).Scan(&c.Likes, &c.Dislikes)
	return c, err
}

func (s *PostgresStore) AuditComments(ctx context.Context) ([]engagement.Comment, error) {
	q := `SELECT ` + commentColumns + ` FROM comments`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engagement.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
