// Package sqlite provides a SQLite-backed board storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nozmo-king/chorum/internal/sqlitedb"
	"github.com/nozmo-king/chorum/lib/board"
	"github.com/nozmo-king/chorum/lib/board/sqlite/migrations"
)

// Store persists boards, threads and posts in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ board.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func verifiedAt(p board.Proof) any {
	if p.VerifiedAt == nil {
		return nil
	}
	return toMillis(*p.VerifiedAt)
}

// Open opens a SQLite board store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	sqlDB, err := sqlitedb.Open(ctx, path, migrations.FS)
	if err != nil {
		return nil, err
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// DB exposes the handle so other tables can share the file.
func (s *Store) DB() *sql.DB {
	return s.sqlDB
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const boardColumns = `id, slug, name, description, is_active, thread_count, post_count, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBoard(row scanner) (board.Board, error) {
	var (
		b                    board.Board
		createdAt, updatedAt int64
	)
	if err := row.Scan(&b.ID, &b.Slug, &b.Name, &b.Description, &b.IsActive, &b.ThreadCount, &b.PostCount, &createdAt, &updatedAt); err != nil {
		return board.Board{}, err
	}
	b.CreatedAt = fromMillis(createdAt)
	b.UpdatedAt = fromMillis(updatedAt)
	return b, nil
}

// ListBoards returns active boards ordered by name.
func (s *Store) ListBoards(ctx context.Context) ([]board.Board, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	var result []board.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}

	return result, nil
}

func (s *Store) boardWhere(ctx context.Context, where string, arg any) (*board.Board, error) {
	b, err := scanBoard(s.sqlDB.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE `+where+` AND is_active = 1`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", board.ErrNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}
	return &b, nil
}

func (s *Store) BoardByID(ctx context.Context, id int64) (*board.Board, error) {
	return s.boardWhere(ctx, "id = ?", id)
}

func (s *Store) BoardBySlug(ctx context.Context, slug string) (*board.Board, error) {
	return s.boardWhere(ctx, "slug = ?", strings.TrimSpace(slug))
}

const threadColumns = `id, board_id, title, content, author_pubkey, reply_count, is_pinned, is_locked, bumped_at,
	pow_nonce, pow_hash, pow_challenge_id, pow_difficulty, pow_verified_at, created_at, updated_at`

func scanThread(row scanner) (board.Thread, error) {
	var (
		t                              board.Thread
		nonce                          int64
		bumpedAt, createdAt, updatedAt int64
		verified                       sql.NullInt64
	)
	if err := row.Scan(
		&t.ID, &t.BoardID, &t.Title, &t.Content, &t.AuthorPubkey, &t.ReplyCount, &t.IsPinned, &t.IsLocked, &bumpedAt,
		&nonce, &t.Hash, &t.ChallengeID, &t.Difficulty, &verified, &createdAt, &updatedAt,
	); err != nil {
		return board.Thread{}, err
	}
	t.Nonce = uint64(nonce)
	t.VerifiedAt = nullMillis(verified)
	t.BumpedAt = fromMillis(bumpedAt)
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return t, nil
}

// ListThreads returns pinned threads first, then the most recently bumped.
func (s *Store) ListThreads(ctx context.Context, boardID int64, limit int) ([]board.Thread, error) {
	if limit <= 0 {
		limit = board.DefaultThreadLimit
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+threadColumns+` FROM threads WHERE board_id = ? ORDER BY is_pinned DESC, bumped_at DESC, id DESC LIMIT ?`,
		boardID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var result []board.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}

	return result, nil
}

func (s *Store) Thread(ctx context.Context, id int64) (*board.Thread, error) {
	t, err := scanThread(s.sqlDB.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", board.ErrThreadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return &t, nil
}

const postColumns = `id, thread_id, parent_id, content, author_pubkey, attachments,
	pow_nonce, pow_hash, pow_challenge_id, pow_difficulty, pow_verified_at, created_at, updated_at`

func scanPost(row scanner) (board.Post, error) {
	var (
		p                    board.Post
		parentID             sql.NullInt64
		attachments          string
		nonce                int64
		createdAt, updatedAt int64
		verified             sql.NullInt64
	)
	if err := row.Scan(
		&p.ID, &p.ThreadID, &parentID, &p.Content, &p.AuthorPubkey, &attachments,
		&nonce, &p.Hash, &p.ChallengeID, &p.Difficulty, &verified, &createdAt, &updatedAt,
	); err != nil {
		return board.Post{}, err
	}
	if err := json.Unmarshal([]byte(attachments), &p.Attachments); err != nil {
		return board.Post{}, fmt.Errorf("decode attachments of post %d: %w", p.ID, err)
	}
	p.ParentID = parentID.Int64
	p.Nonce = uint64(nonce)
	p.VerifiedAt = nullMillis(verified)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

// ListPosts returns the replies of a thread oldest first.
func (s *Store) ListPosts(ctx context.Context, threadID int64) ([]board.Post, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE thread_id = ? ORDER BY created_at ASC, id ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var result []board.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	return result, nil
}

// CreateThread inserts a thread and counts it against its board.
func (s *Store) CreateThread(ctx context.Context, t board.NewThread) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(t.Content) == "" {
		return 0, board.ErrEmptyBody
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create thread: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := toMillis(s.now())

	res, err := tx.ExecContext(ctx,
		`UPDATE boards SET thread_count = thread_count + 1, updated_at = ? WHERE id = ? AND is_active = 1`,
		now, t.BoardID,
	)
	if err != nil {
		return 0, fmt.Errorf("count thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("%w: %d", board.ErrNotFound, t.BoardID)
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO threads (
		   board_id, title, content, author_pubkey,
		   pow_nonce, pow_hash, pow_challenge_id, pow_difficulty, pow_verified_at,
		   bumped_at, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.BoardID, t.Title, t.Content, t.AuthorPubkey,
		int64(t.Proof.Nonce), t.Proof.Hash, t.Proof.ChallengeID, t.Proof.Difficulty, verifiedAt(t.Proof),
		now, now, now,
	)
	if sqlitedb.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %s", board.ErrProofReused, t.Proof.ChallengeID)
	}
	if err != nil {
		return 0, fmt.Errorf("insert thread: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert thread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create thread: %w", err)
	}

	return id, nil
}

// CreatePost inserts a reply and bumps its thread.
func (s *Store) CreatePost(ctx context.Context, p board.NewPost) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(p.Content) == "" {
		return 0, board.ErrEmptyBody
	}

	attachments := p.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return 0, fmt.Errorf("encode attachments: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create post: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		boardID int64
		locked  bool
	)
	err = tx.QueryRowContext(ctx, `SELECT board_id, is_locked FROM threads WHERE id = ?`, p.ThreadID).Scan(&boardID, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", board.ErrThreadNotFound, p.ThreadID)
	}
	if err != nil {
		return 0, fmt.Errorf("get thread: %w", err)
	}
	if locked {
		return 0, fmt.Errorf("%w: %d", board.ErrThreadLocked, p.ThreadID)
	}

	var parent any
	if p.ParentID != 0 {
		var found int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ? AND thread_id = ?`, p.ParentID, p.ThreadID).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: post %d thread %d", board.ErrParentNotFound, p.ParentID, p.ThreadID)
		}
		if err != nil {
			return 0, fmt.Errorf("get parent post: %w", err)
		}
		parent = p.ParentID
	}

	now := toMillis(s.now())

	res, err := tx.ExecContext(ctx,
		`INSERT INTO posts (
		   thread_id, parent_id, content, author_pubkey, attachments,
		   pow_nonce, pow_hash, pow_challenge_id, pow_difficulty, pow_verified_at,
		   created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ThreadID, parent, p.Content, p.AuthorPubkey, string(attachmentsJSON),
		int64(p.Proof.Nonce), p.Proof.Hash, p.Proof.ChallengeID, p.Proof.Difficulty, verifiedAt(p.Proof),
		now, now,
	)
	if sqlitedb.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %s", board.ErrProofReused, p.Proof.ChallengeID)
	}
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET reply_count = reply_count + 1, bumped_at = ?, updated_at = ? WHERE id = ?`,
		now, now, p.ThreadID,
	); err != nil {
		return 0, fmt.Errorf("bump thread: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE boards SET post_count = post_count + 1, updated_at = ? WHERE id = ?`,
		now, boardID,
	); err != nil {
		return 0, fmt.Errorf("count post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create post: %w", err)
	}

	return id, nil
}
