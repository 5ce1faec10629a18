// Package board defines the boards, threads and posts that accepted proofs
// create, and the storage contract for them.
package board

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("board: not found")
	ErrThreadNotFound = errors.New("board: thread not found")
	ErrParentNotFound = errors.New("board: parent post not found in thread")
	ErrThreadLocked   = errors.New("board: thread is locked")
	ErrEmptyBody      = errors.New("board: body is required")
	ErrProofReused    = errors.New("board: proof already backs other content")
)

// DefaultThreadLimit caps board listings.
const DefaultThreadLimit = 50

type Board struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	ThreadCount int       `json:"thread_count"`
	PostCount   int       `json:"post_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Proof is the proof-of-work metadata stored with every thread and post.
type Proof struct {
	Nonce       uint64     `json:"pow_nonce"`
	Hash        string     `json:"pow_hash"`
	ChallengeID string     `json:"pow_challenge_id"`
	Difficulty  float64    `json:"pow_difficulty"`
	VerifiedAt  *time.Time `json:"pow_verified_at,omitempty"`
}

type Thread struct {
	ID           int64     `json:"id"`
	BoardID      int64     `json:"board_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	AuthorPubkey string    `json:"author_pubkey,omitempty"`
	ReplyCount   int       `json:"reply_count"`
	IsPinned     bool      `json:"is_pinned"`
	IsLocked     bool      `json:"is_locked"`
	BumpedAt     time.Time `json:"bumped_at"`
	Proof
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Post struct {
	ID           int64     `json:"id"`
	ThreadID     int64     `json:"thread_id"`
	ParentID     int64     `json:"parent_id,omitempty"`
	Content      string    `json:"content"`
	AuthorPubkey string    `json:"author_pubkey,omitempty"`
	Attachments  []string  `json:"attachments,omitempty"`
	Proof
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewThread is a thread about to be created.
type NewThread struct {
	BoardID      int64
	Title        string
	Content      string
	AuthorPubkey string
	Proof        Proof
}

// NewPost is a reply about to be created. ParentID 0 means a top-level
// reply.
type NewPost struct {
	ThreadID     int64
	ParentID     int64
	Content      string
	AuthorPubkey string
	Attachments  []string
	Proof        Proof
}

// Store is implemented by content backends.
type Store interface {
	ListBoards(ctx context.Context) ([]Board, error)
	BoardByID(ctx context.Context, id int64) (*Board, error)
	BoardBySlug(ctx context.Context, slug string) (*Board, error)
	ListThreads(ctx context.Context, boardID int64, limit int) ([]Thread, error)
	Thread(ctx context.Context, id int64) (*Thread, error)
	ListPosts(ctx context.Context, threadID int64) ([]Post, error)
	CreateThread(ctx context.Context, t NewThread) (int64, error)
	CreatePost(ctx context.Context, p NewPost) (int64, error)
}
