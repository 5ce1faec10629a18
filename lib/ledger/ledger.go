// Package ledger remembers the response of each client operation so retries
// are answered from the first result instead of repeating work.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nozmo-king/chorum/lib/store"
)

var (
	ErrNotFound    = errors.New("ledger: no receipt for operation")
	ErrUnknownKind = errors.New("ledger: unknown operation kind")
	ErrNoOpID      = errors.New("ledger: operation id is required")
)

// Kind names the operation a receipt answers.
type Kind string

const (
	KindThreadBegin  Kind = "thread_begin"
	KindReplyBegin   Kind = "reply_begin"
	KindThreadCommit Kind = "thread_commit"
	KindReplyCommit  Kind = "reply_commit"
)

func (k Kind) Valid() error {
	switch k {
	case KindThreadBegin, KindReplyBegin, KindThreadCommit, KindReplyCommit:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
}

// OpReceipt is the stored outcome of one operation. Payload is the response
// exactly as it was first sent.
type OpReceipt struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Ledger stores receipts in a store.Interface under the "op" prefix.
type Ledger struct {
	receipts *store.JSON[OpReceipt]
	ttl      time.Duration
	now      func() time.Time
}

// New creates a Ledger. Receipts are kept for ttl; zero keeps them forever.
func New(s store.Interface, ttl time.Duration) *Ledger {
	return &Ledger{
		receipts: &store.JSON[OpReceipt]{
			Underlying: s,
			Prefix:     "op",
		},
		ttl: ttl,
		now: time.Now,
	}
}

func (l *Ledger) receipt(op string, kind Kind, payload any) (OpReceipt, error) {
	if op == "" {
		return OpReceipt{}, ErrNoOpID
	}

	if err := kind.Valid(); err != nil {
		return OpReceipt{}, err
	}

	var raw json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return OpReceipt{}, fmt.Errorf("ledger: can't marshal payload for %s: %w", op, err)
		}
		raw = data
	}

	return OpReceipt{
		ID:        op,
		Kind:      kind,
		Payload:   raw,
		CreatedAt: l.now().UTC(),
	}, nil
}

// Put records payload for op, replacing any earlier receipt.
func (l *Ledger) Put(ctx context.Context, op string, kind Kind, payload any) error {
	r, err := l.receipt(op, kind, payload)
	if err != nil {
		return err
	}

	if err := l.receipts.Set(ctx, op, r, l.ttl); err != nil {
		return fmt.Errorf("ledger: can't store receipt %s: %w", op, err)
	}

	return nil
}

// Get returns the receipt for op or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, op string) (OpReceipt, error) {
	r, err := l.receipts.Get(ctx, op)
	if errors.Is(err, store.ErrNotFound) {
		return OpReceipt{}, fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	if err != nil {
		return OpReceipt{}, fmt.Errorf("ledger: can't load receipt %s: %w", op, err)
	}

	return r, nil
}

// PutIfAbsent records payload for op unless a receipt already exists. It
// returns the receipt that is stored after the call and whether it is the
// one passed in. Losing a race is not an error.
func (l *Ledger) PutIfAbsent(ctx context.Context, op string, kind Kind, payload any) (OpReceipt, bool, error) {
	r, err := l.receipt(op, kind, payload)
	if err != nil {
		return OpReceipt{}, false, err
	}

	err = l.receipts.Add(ctx, op, r, l.ttl)
	switch {
	case err == nil:
		return r, true, nil
	case errors.Is(err, store.ErrExists):
		existing, err := l.Get(ctx, op)
		if err != nil {
			return OpReceipt{}, false, err
		}
		return existing, false, nil
	default:
		return OpReceipt{}, false, fmt.Errorf("ledger: can't store receipt %s: %w", op, err)
	}
}
