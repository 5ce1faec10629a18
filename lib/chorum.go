// Package lib is the chorum HTTP service: the proof-of-work begin and
// commit API plus read-only board endpoints.
package lib

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nozmo-king/chorum"
	"github.com/nozmo-king/chorum/lib/board"
	"github.com/nozmo-king/chorum/lib/challenge"
	"github.com/nozmo-king/chorum/lib/commit"
	"github.com/nozmo-king/chorum/lib/ledger"
)

// DefaultBoardID receives new threads that don't name a board.
const DefaultBoardID int64 = 1

var (
	ErrMissingDependency = errors.New("lib: server is missing a dependency")

	commitResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorum_commits",
		Help: "The result of every commit request",
	}, []string{"scope", "result"})

	contentCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorum_content_created",
		Help: "Threads and posts created from accepted proofs",
	}, []string{"scope"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chorum_http_request_duration_seconds",
		Help:    "How long each API route took to answer",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

type Options struct {
	Issuer   *challenge.Issuer
	Verifier *challenge.Verifier
	Repo     *challenge.Repository
	Ledger   *ledger.Ledger
	Commits  *commit.Recorder
	Boards   board.Store

	MinMinerVersion int
	Clock           func() time.Time
	Logger          *slog.Logger
}

type Server struct {
	mux      *http.ServeMux
	issuer   *challenge.Issuer
	verifier *challenge.Verifier
	repo     *challenge.Repository
	ledger   *ledger.Ledger
	commits  *commit.Recorder
	boards   board.Store

	minMinerVersion int
	now             func() time.Time
	logger          *slog.Logger
}

func New(opts Options) (*Server, error) {
	var errs []error
	for name, dep := range map[string]bool{
		"issuer":   opts.Issuer != nil,
		"verifier": opts.Verifier != nil,
		"repo":     opts.Repo != nil,
		"ledger":   opts.Ledger != nil,
		"commits":  opts.Commits != nil,
		"boards":   opts.Boards != nil,
	} {
		if !dep {
			errs = append(errs, errors.New(name))
		}
	}
	if len(errs) != 0 {
		return nil, errors.Join(append([]error{ErrMissingDependency}, errs...)...)
	}

	result := &Server{
		mux:             http.NewServeMux(),
		issuer:          opts.Issuer,
		verifier:        opts.Verifier,
		repo:            opts.Repo,
		ledger:          opts.Ledger,
		commits:         opts.Commits,
		boards:          opts.Boards,
		minMinerVersion: opts.MinMinerVersion,
		now:             opts.Clock,
		logger:          opts.Logger,
	}

	if result.minMinerVersion <= 0 {
		result.minMinerVersion = chorum.MinMinerVersion
	}
	if result.now == nil {
		result.now = time.Now
	}
	if result.logger == nil {
		result.logger = slog.Default()
	}

	result.routes()

	return result, nil
}

func (s *Server) routes() {
	s.handle("GET /healthz", "healthz", s.healthz)

	s.handle("GET "+chorum.APIPrefix+"pow/params", "pow_params", s.powParams)
	s.handle("POST "+chorum.APIPrefix+"pow/thread/begin", "thread_begin", s.threadBegin)
	s.handle("POST "+chorum.APIPrefix+"pow/thread/commit", "thread_commit", s.threadCommit)
	s.handle("POST "+chorum.APIPrefix+"pow/reply/begin", "reply_begin", s.replyBegin)
	s.handle("POST "+chorum.APIPrefix+"pow/reply/commit", "reply_commit", s.replyCommit)

	s.handle("GET "+chorum.APIPrefix+"boards", "boards", s.listBoards)
	s.handle("GET "+chorum.APIPrefix+"boards/{slug}", "board", s.showBoard)
	s.handle("GET "+chorum.APIPrefix+"threads/{id}", "thread", s.showThread)
}

func (s *Server) handle(pattern, route string, h http.HandlerFunc) {
	method, path, _ := strings.Cut(pattern, " ")
	pattern = method + " " + strings.TrimSuffix(chorum.BasePrefix, "/") + path

	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		defer func() {
			requestDuration.WithLabelValues(route).Observe(time.Since(t0).Seconds())
		}()

		h(w, r)
	}))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
