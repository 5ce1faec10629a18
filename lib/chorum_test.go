package lib

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nozmo-king/chorum/lib/board"
	boardsqlite "github.com/nozmo-king/chorum/lib/board/sqlite"
	"github.com/nozmo-king/chorum/lib/challenge"
	"github.com/nozmo-king/chorum/lib/commit"
	"github.com/nozmo-king/chorum/lib/ledger"
	"github.com/nozmo-king/chorum/lib/pow"
	kvsqlite "github.com/nozmo-king/chorum/lib/store/sqlite"
)

const testIdentity = "02aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

type fixture struct {
	srv     *Server
	ts      *httptest.Server
	boards  *boardsqlite.Store
	repo    *challenge.Repository
	commits *commit.Recorder
}

func noLoad(context.Context) (challenge.Load, error) { return challenge.Load{}, nil }

func newFixture(t *testing.T, prefix string) *fixture {
	t.Helper()

	boards, err := boardsqlite.Open(t.Context(), filepath.Join(t.TempDir(), "chorum.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { boards.Close() })

	kv, err := kvsqlite.New(t.Context(), boards.DB())
	if err != nil {
		t.Fatal(err)
	}

	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := challenge.NewRepository(kv)
	ldg := ledger.New(kv, 0)
	commits := commit.NewRecorder(kv)

	issuer, err := challenge.NewIssuer(challenge.IssuerOptions{
		Repository:    repo,
		Ledger:        ldg,
		DefaultPrefix: prefix,
		TTL:           5 * time.Minute,
		Load:          noLoad,
		Logger:        lg,
	})
	if err != nil {
		t.Fatal(err)
	}

	srv, err := New(Options{
		Issuer:   issuer,
		Verifier: challenge.NewVerifier(challenge.VerifierOptions{Repository: repo, Logger: lg}),
		Repo:     repo,
		Ledger:   ldg,
		Commits:  commits,
		Boards:   boards,
		Logger:   lg,
	})
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &fixture{
		srv:     srv,
		ts:      ts,
		boards:  boards,
		repo:    repo,
		commits: commits,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, f.ts.URL+path, rdr)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("can't decode %q: %v", data, err)
	}
	return result
}

func wantError(t *testing.T, status int, data []byte, wantStatus int, wantMsg string) {
	t.Helper()

	if status != wantStatus {
		t.Fatalf("status = %d, want %d: %s", status, wantStatus, data)
	}

	if got := decode[errorResponse](t, data).Error; got != wantMsg {
		t.Fatalf("error = %q, want %q", got, wantMsg)
	}
}

// mine searches for a nonce the way a client would.
func mine(t *testing.T, resp challenge.BeginResponse) uint64 {
	t.Helper()

	canonical, err := hex.DecodeString(resp.CanonicalBytes)
	if err != nil {
		t.Fatal(err)
	}

	for nonce := uint64(0); nonce < 1<<20; nonce++ {
		if pow.VerifyPrefix(pow.Digest(canonical, nonce), resp.RequiredPrefixHex) {
			return nonce
		}
	}

	t.Fatalf("no nonce found for prefix %q", resp.RequiredPrefixHex)
	return 0
}

var testDraft = pow.Draft{Title: "hello", Body: "first post"}

func (f *fixture) beginThread(t *testing.T, op string, ts int64) challenge.BeginResponse {
	t.Helper()

	status, data := f.do(t, "POST", "/api/pow/thread/begin", threadBeginRequest{
		ClientOpID: op,
		PostDraft:  testDraft,
		Pubkey:     testIdentity,
		Timestamp:  ts,
	})
	if status != http.StatusOK {
		t.Fatalf("thread begin: %d %s", status, data)
	}

	return decode[challenge.BeginResponse](t, data)
}

func threadCommitBody(op string, chall challenge.BeginResponse, nonce uint64, ts int64) commitRequest {
	return commitRequest{
		OpID:        op,
		ChallengeID: chall.ChallengeID,
		PostDraft:   testDraft,
		Proof:       proofOfWork{Nonce: nonce, MinerVersion: 1, Timestamp: ts},
		Pubkey:      testIdentity,
	}
}

func (f *fixture) createThread(t *testing.T) int64 {
	t.Helper()

	op := uuid.NewString()
	const ts = 1700000000

	chall := f.beginThread(t, op, ts)
	status, data := f.do(t, "POST", "/api/pow/thread/commit", threadCommitBody(op, chall, mine(t, chall), ts))
	if status != http.StatusOK {
		t.Fatalf("thread commit: %d %s", status, data)
	}

	return decode[threadCommitResponse](t, data).ThreadID
}

func TestPowParams(t *testing.T) {
	f := newFixture(t, "21e8")

	status, data := f.do(t, "GET", "/api/pow/params", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, data)
	}

	got := decode[powParamsResponse](t, data)
	want := powParamsResponse{
		Mode:                  "vanity_prefix",
		DefaultPrefix:         "21e8",
		MinMinerVersion:       1,
		SuggestedPrefixByLoad: "21e8",
	}

	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "0")

	if status, data := f.do(t, "GET", "/healthz", nil); status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, data)
	}
}

func TestThreadLifecycle(t *testing.T) {
	f := newFixture(t, "0")

	op := uuid.NewString()
	const ts = 1700000000

	chall := f.beginThread(t, op, ts)
	if chall.OpID != op {
		t.Errorf("op_id = %q, want %q", chall.OpID, op)
	}

	nonce := mine(t, chall)
	body := threadCommitBody(op, chall, nonce, ts)

	status, first := f.do(t, "POST", "/api/pow/thread/commit", body)
	if status != http.StatusOK {
		t.Fatalf("commit: %d %s", status, first)
	}

	threadID := decode[threadCommitResponse](t, first).ThreadID
	if threadID <= 0 {
		t.Fatalf("bad thread id %d", threadID)
	}

	t.Run("retry replays", func(t *testing.T) {
		status, again := f.do(t, "POST", "/api/pow/thread/commit", body)
		if status != http.StatusOK {
			t.Fatalf("retry: %d %s", status, again)
		}

		if !bytes.Equal(bytes.TrimSpace(first), bytes.TrimSpace(again)) {
			t.Errorf("retry answered %s, first answer was %s", again, first)
		}
	})

	t.Run("commit recorded", func(t *testing.T) {
		c, err := f.commits.ForChallenge(t.Context(), chall.ChallengeID)
		if err != nil {
			t.Fatal(err)
		}

		if !c.Verified || c.ThreadID != threadID || c.Nonce != nonce {
			t.Errorf("unexpected commit %+v", c)
		}
	})

	t.Run("thread readable", func(t *testing.T) {
		status, data := f.do(t, "GET", fmt.Sprintf("/api/threads/%d", threadID), nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d: %s", status, data)
		}

		got := decode[threadResponse](t, data)
		if got.Thread.Title != testDraft.Title || got.Thread.Content != testDraft.Body {
			t.Errorf("unexpected thread %+v", got.Thread)
		}

		if got.Thread.ChallengeID != chall.ChallengeID || !strings.HasPrefix(got.Thread.Hash, "0") {
			t.Errorf("proof not stored: %+v", got.Thread.Proof)
		}

		if got.Thread.Difficulty != pow.Score(got.Thread.Hash) {
			t.Errorf("pow_difficulty = %v, want %v", got.Thread.Difficulty, pow.Score(got.Thread.Hash))
		}

		if len(got.Posts) != 0 {
			t.Errorf("new thread has %d posts", len(got.Posts))
		}
	})

	t.Run("board lists thread", func(t *testing.T) {
		status, data := f.do(t, "GET", "/api/boards/b", nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d: %s", status, data)
		}

		got := decode[boardResponse](t, data)
		if len(got.Threads) != 1 || got.Threads[0].ID != threadID {
			t.Fatalf("unexpected threads %+v", got.Threads)
		}

		if got.Board.ThreadCount != 1 {
			t.Errorf("thread_count = %d, want 1", got.Board.ThreadCount)
		}
	})
}

func TestReplyLifecycle(t *testing.T) {
	f := newFixture(t, "0")
	threadID := f.createThread(t)

	op := uuid.NewString()
	const ts = 1700000100
	draft := pow.Draft{Body: "a reply", Attachments: []string{"img-1"}}

	status, data := f.do(t, "POST", "/api/pow/reply/begin", replyBeginRequest{
		ClientOpID: op,
		PostDraft:  draft,
		Pubkey:     testIdentity,
		ThreadID:   threadID,
		Timestamp:  ts,
	})
	if status != http.StatusOK {
		t.Fatalf("reply begin: %d %s", status, data)
	}
	chall := decode[challenge.BeginResponse](t, data)

	status, data = f.do(t, "POST", "/api/pow/reply/commit", commitRequest{
		OpID:        op,
		ChallengeID: chall.ChallengeID,
		PostDraft:   draft,
		Proof:       proofOfWork{Nonce: mine(t, chall), MinerVersion: 1, Timestamp: ts},
		Pubkey:      testIdentity,
		ThreadID:    threadID,
	})
	if status != http.StatusOK {
		t.Fatalf("reply commit: %d %s", status, data)
	}

	postID := decode[replyCommitResponse](t, data).PostID

	status, data = f.do(t, "GET", fmt.Sprintf("/api/threads/%d", threadID), nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, data)
	}

	got := decode[threadResponse](t, data)
	if len(got.Posts) != 1 || got.Posts[0].ID != postID {
		t.Fatalf("unexpected posts %+v", got.Posts)
	}

	if got.Thread.ReplyCount != 1 {
		t.Errorf("reply_count = %d, want 1", got.Thread.ReplyCount)
	}

	if got.Posts[0].Content != "a reply" || len(got.Posts[0].Attachments) != 1 {
		t.Errorf("unexpected post %+v", got.Posts[0])
	}
}

func TestBeginReplay(t *testing.T) {
	f := newFixture(t, "0")
	op := uuid.NewString()

	first := f.beginThread(t, op, 1700000000)

	// Different parameters, same op id: the first answer comes back.
	status, data := f.do(t, "POST", "/api/pow/thread/begin", threadBeginRequest{
		ClientOpID: op,
		PostDraft:  pow.Draft{Body: "something else"},
		Pubkey:     testIdentity,
		Timestamp:  1800000000,
	})
	if status != http.StatusOK {
		t.Fatalf("replay: %d %s", status, data)
	}

	if got := decode[challenge.BeginResponse](t, data); got != first {
		t.Errorf("replay = %+v, want %+v", got, first)
	}
}

func TestBeginErrors(t *testing.T) {
	f := newFixture(t, "0")

	for _, tt := range []struct {
		name   string
		path   string
		body   any
		status int
		msg    string
	}{
		{
			name:   "not json",
			path:   "/api/pow/thread/begin",
			body:   "{",
			status: http.StatusBadRequest,
			msg:    "Invalid request format",
		},
		{
			name: "bad pubkey",
			path: "/api/pow/thread/begin",
			body: threadBeginRequest{
				ClientOpID: uuid.NewString(),
				PostDraft:  testDraft,
				Pubkey:     "04" + strings.Repeat("a", 64),
			},
			status: http.StatusUnauthorized,
			msg:    "Invalid public key",
		},
		{
			name: "bad op id",
			path: "/api/pow/thread/begin",
			body: threadBeginRequest{
				ClientOpID: "not-a-uuid",
				PostDraft:  testDraft,
				Pubkey:     testIdentity,
			},
			status: http.StatusBadRequest,
			msg:    "client_op_id must be a UUID",
		},
		{
			name: "empty body",
			path: "/api/pow/thread/begin",
			body: threadBeginRequest{
				ClientOpID: uuid.NewString(),
				PostDraft:  pow.Draft{Title: "only a title"},
				Pubkey:     testIdentity,
			},
			status: http.StatusBadRequest,
			msg:    "Post body is required",
		},
		{
			name: "unknown board",
			path: "/api/pow/thread/begin",
			body: threadBeginRequest{
				ClientOpID: uuid.NewString(),
				PostDraft:  testDraft,
				Pubkey:     testIdentity,
				BoardID:    404,
			},
			status: http.StatusNotFound,
			msg:    "Not found",
		},
		{
			name: "reply without thread",
			path: "/api/pow/reply/begin",
			body: replyBeginRequest{
				ClientOpID: uuid.NewString(),
				PostDraft:  testDraft,
				Pubkey:     testIdentity,
			},
			status: http.StatusBadRequest,
			msg:    "Invalid thread or parent id",
		},
		{
			name: "reply to missing thread",
			path: "/api/pow/reply/begin",
			body: replyBeginRequest{
				ClientOpID: uuid.NewString(),
				PostDraft:  testDraft,
				Pubkey:     testIdentity,
				ThreadID:   9999,
			},
			status: http.StatusNotFound,
			msg:    "Thread not found",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			status, data := f.do(t, "POST", tt.path, tt.body)
			wantError(t, status, data, tt.status, tt.msg)
		})
	}
}

func TestCommitErrors(t *testing.T) {
	f := newFixture(t, "00")

	op := uuid.NewString()
	const ts = 1700000000
	chall := f.beginThread(t, op, ts)
	nonce := mine(t, chall)

	t.Run("unknown challenge", func(t *testing.T) {
		body := threadCommitBody(op, chall, nonce, ts)
		body.ChallengeID = uuid.NewString()

		status, data := f.do(t, "POST", "/api/pow/thread/commit", body)
		wantError(t, status, data, http.StatusNotFound, "Challenge not found")
	})

	t.Run("wrong nonce", func(t *testing.T) {
		canonical, _ := hex.DecodeString(chall.CanonicalBytes)
		bad := nonce + 1
		for pow.VerifyPrefix(pow.Digest(canonical, bad), chall.RequiredPrefixHex) {
			bad++
		}

		status, data := f.do(t, "POST", "/api/pow/thread/commit", threadCommitBody(op, chall, bad, ts))
		wantError(t, status, data, http.StatusBadRequest, "Invalid proof of work")
	})

	t.Run("old miner", func(t *testing.T) {
		body := threadCommitBody(op, chall, nonce, ts)
		body.Proof.MinerVersion = 0

		status, data := f.do(t, "POST", "/api/pow/thread/commit", body)
		wantError(t, status, data, http.StatusBadRequest, "Miner version too old")
	})

	t.Run("wrong route", func(t *testing.T) {
		body := threadCommitBody(op, chall, nonce, ts)
		body.ThreadID = 1

		status, data := f.do(t, "POST", "/api/pow/reply/commit", body)
		wantError(t, status, data, http.StatusBadRequest, "Challenge was issued for a thread")
	})

	t.Run("rejections do not spend the challenge", func(t *testing.T) {
		status, data := f.do(t, "POST", "/api/pow/thread/commit", threadCommitBody(op, chall, nonce, ts))
		if status != http.StatusOK {
			t.Fatalf("commit: %d %s", status, data)
		}
	})
}

func TestCommitReleasesClaimOnFailure(t *testing.T) {
	f := newFixture(t, "0")
	threadID := f.createThread(t)

	op := uuid.NewString()
	const ts = 1700000200
	draft := pow.Draft{Body: "orphan"}

	status, data := f.do(t, "POST", "/api/pow/reply/begin", replyBeginRequest{
		ClientOpID: op,
		PostDraft:  draft,
		Pubkey:     testIdentity,
		ThreadID:   threadID,
		ParentID:   424242,
		Timestamp:  ts,
	})
	if status != http.StatusOK {
		t.Fatalf("reply begin: %d %s", status, data)
	}
	chall := decode[challenge.BeginResponse](t, data)

	status, data = f.do(t, "POST", "/api/pow/reply/commit", commitRequest{
		OpID:        op,
		ChallengeID: chall.ChallengeID,
		PostDraft:   draft,
		Proof:       proofOfWork{Nonce: mine(t, chall), MinerVersion: 1, Timestamp: ts},
		Pubkey:      testIdentity,
		ThreadID:    threadID,
		ParentID:    424242,
	})
	wantError(t, status, data, http.StatusBadRequest, "Parent post not found in thread")

	claim, err := f.repo.Claimed(t.Context(), chall.ChallengeID)
	if err != nil {
		t.Fatal(err)
	}
	if claim != nil {
		t.Fatalf("claim survived a failed commit: %+v", claim)
	}
}

func TestDoubleSpend(t *testing.T) {
	f := newFixture(t, "0")

	op := uuid.NewString()
	const ts = 1700000000
	chall := f.beginThread(t, op, ts)
	body := threadCommitBody(op, chall, mine(t, chall), ts)

	const racers = 8

	var (
		wg       sync.WaitGroup
		statuses [racers]int
		bodies   [racers][]byte
	)

	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i], bodies[i] = f.do(t, "POST", "/api/pow/thread/commit", body)
		}()
	}
	wg.Wait()

	var threadID int64
	for i := range racers {
		switch statuses[i] {
		case http.StatusOK:
			id := decode[threadCommitResponse](t, bodies[i]).ThreadID
			if threadID != 0 && id != threadID {
				t.Errorf("two threads created from one challenge: %d and %d", threadID, id)
			}
			threadID = id
		case http.StatusConflict:
			wantError(t, statuses[i], bodies[i], http.StatusConflict, "Challenge already used")
		default:
			t.Errorf("racer %d got %d: %s", i, statuses[i], bodies[i])
		}
	}

	if threadID == 0 {
		t.Fatal("no racer created a thread")
	}

	threads, err := f.boards.ListThreads(t.Context(), DefaultBoardID, board.DefaultThreadLimit)
	if err != nil {
		t.Fatal(err)
	}

	if len(threads) != 1 {
		t.Fatalf("got %d threads, want 1", len(threads))
	}
}

func TestBoardsReads(t *testing.T) {
	f := newFixture(t, "0")

	status, data := f.do(t, "GET", "/api/boards", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, data)
	}

	boards := decode[[]board.Board](t, data)
	if len(boards) != 1 || boards[0].Slug != "b" {
		t.Fatalf("unexpected boards %+v", boards)
	}

	status, data = f.do(t, "GET", "/api/boards/nope", nil)
	wantError(t, status, data, http.StatusNotFound, "Not found")

	status, data = f.do(t, "GET", "/api/threads/abc", nil)
	wantError(t, status, data, http.StatusNotFound, "Thread not found")

	status, data = f.do(t, "GET", "/api/threads/77", nil)
	wantError(t, status, data, http.StatusNotFound, "Thread not found")
}

func TestAchievementView(t *testing.T) {
	if achievement("0000abc") != nil {
		t.Error("digest without the marker has an achievement")
	}

	a := achievement("21e800ff")
	if a == nil || a.Tier != 2 {
		t.Errorf("achievement(21e800ff) = %+v, want tier 2", a)
	}
}

func TestNewNeedsDependencies(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("built a server with no dependencies")
	}
}

// nonceWhere returns the first nonce after start whose digest over p does
// or does not carry prefix.
func nonceWhere(t *testing.T, p pow.Params, start uint64, prefix string, match bool) uint64 {
	t.Helper()

	canonical, err := pow.CanonicalBytes(p)
	if err != nil {
		t.Fatal(err)
	}

	for nonce := start + 1; nonce < start+1<<20; nonce++ {
		if pow.VerifyPrefix(pow.Digest(canonical, nonce), prefix) == match {
			return nonce
		}
	}

	t.Fatalf("no nonce after %d with match=%v for prefix %q", start, match, prefix)
	return 0
}

func TestCommitRetryMustMatch(t *testing.T) {
	f := newFixture(t, "0")

	op := uuid.NewString()
	const ts = 1700000000

	chall := f.beginThread(t, op, ts)
	nonce := mine(t, chall)

	status, first := f.do(t, "POST", "/api/pow/thread/commit", threadCommitBody(op, chall, nonce, ts))
	if status != http.StatusOK {
		t.Fatalf("commit: %d %s", status, first)
	}

	otherIdentity := "03" + strings.Repeat("b", 64)
	otherDraft := pow.Draft{Title: "not mine", Body: "swapped body"}

	forged := commitRequest{
		OpID:        op,
		ChallengeID: chall.ChallengeID,
		PostDraft:   otherDraft,
		Proof: proofOfWork{
			Nonce: nonceWhere(t, pow.Params{
				Identity:  otherIdentity,
				Scope:     pow.ScopeThread,
				Timestamp: ts,
				Draft:     otherDraft,
			}, nonce, chall.RequiredPrefixHex, false),
			MinerVersion: 1,
			Timestamp:    ts,
		},
		Pubkey: otherIdentity,
	}

	secondSolution := threadCommitBody(op, chall, nonceWhere(t, pow.Params{
		Identity:  testIdentity,
		Scope:     pow.ScopeThread,
		Timestamp: ts,
		Draft:     testDraft,
	}, nonce, chall.RequiredPrefixHex, true), ts)

	for _, tt := range []struct {
		name   string
		path   string
		body   commitRequest
		status int
		msg    string
	}{
		{
			name:   "forged params",
			path:   "/api/pow/thread/commit",
			body:   forged,
			status: http.StatusBadRequest,
			msg:    "Invalid proof of work",
		},
		{
			name:   "another valid nonce",
			path:   "/api/pow/thread/commit",
			body:   secondSolution,
			status: http.StatusConflict,
			msg:    "Challenge already used",
		},
		{
			name:   "same proof on the reply route",
			path:   "/api/pow/reply/commit",
			body:   threadCommitBody(op, chall, nonce, ts),
			status: http.StatusConflict,
			msg:    "Challenge already used",
		},
		{
			name:   "forged params on the reply route",
			path:   "/api/pow/reply/commit",
			body:   forged,
			status: http.StatusConflict,
			msg:    "Challenge already used",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			status, data := f.do(t, "POST", tt.path, tt.body)
			wantError(t, status, data, tt.status, tt.msg)
		})
	}

	t.Run("honest retry still replays", func(t *testing.T) {
		status, again := f.do(t, "POST", "/api/pow/thread/commit", threadCommitBody(op, chall, nonce, ts))
		if status != http.StatusOK || !bytes.Equal(bytes.TrimSpace(first), bytes.TrimSpace(again)) {
			t.Fatalf("retry: %d %s, first answer was %s", status, again, first)
		}
	})
}

func TestBeginRefusesCommitReceipts(t *testing.T) {
	f := newFixture(t, "0")
	f.createThread(t)

	threads, err := f.boards.ListThreads(t.Context(), DefaultBoardID, 1)
	if err != nil || len(threads) != 1 {
		t.Fatalf("threads: %v %+v", err, threads)
	}

	status, data := f.do(t, "POST", "/api/pow/thread/begin", threadBeginRequest{
		ClientOpID: commitReceiptKey(threads[0].ChallengeID),
		PostDraft:  testDraft,
		Pubkey:     testIdentity,
		Timestamp:  1700000000,
	})
	wantError(t, status, data, http.StatusBadRequest, "client_op_id must be a UUID")
}

func TestReplyBeginReplayIgnoresNewParams(t *testing.T) {
	f := newFixture(t, "0")
	threadID := f.createThread(t)

	op := uuid.NewString()
	req := replyBeginRequest{
		ClientOpID: op,
		PostDraft:  pow.Draft{Body: "a reply"},
		Pubkey:     testIdentity,
		ThreadID:   threadID,
		Timestamp:  1700000100,
	}

	status, data := f.do(t, "POST", "/api/pow/reply/begin", req)
	if status != http.StatusOK {
		t.Fatalf("reply begin: %d %s", status, data)
	}
	first := decode[challenge.BeginResponse](t, data)

	req.ThreadID, req.ParentID = -1, -7
	status, data = f.do(t, "POST", "/api/pow/reply/begin", req)
	if status != http.StatusOK {
		t.Fatalf("replay: %d %s", status, data)
	}

	if got := decode[challenge.BeginResponse](t, data); got != first {
		t.Errorf("replay = %+v, want %+v", got, first)
	}
}
