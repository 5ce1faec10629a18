package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nozmo-king/chorum"
	"github.com/nozmo-king/chorum/cmd/chorum/internal/config"
	"github.com/nozmo-king/chorum/data"
	"github.com/nozmo-king/chorum/internal/sqlitedb"
	"github.com/nozmo-king/chorum/lib"
	boardsqlite "github.com/nozmo-king/chorum/lib/board/sqlite"
	"github.com/nozmo-king/chorum/lib/challenge"
	"github.com/nozmo-king/chorum/lib/commit"
	"github.com/nozmo-king/chorum/lib/ledger"
	"github.com/nozmo-king/chorum/lib/logging"
	"github.com/nozmo-king/chorum/lib/policy"
	kvsqlite "github.com/nozmo-king/chorum/lib/store/sqlite"
)

const shutdownTimeout = 10 * time.Second

type Options struct {
	Bind         string
	MetricsBind  string
	DatabaseURL  string
	PolicyFname  string
	SlogLevel    string
	PowPrefix    string
	ChallengeTTL time.Duration
	OpReceiptTTL time.Duration
}

func Main(opts Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bind := config.Bind{HTTP: opts.Bind, Metrics: opts.MetricsBind}
	if err := bind.Valid(); err != nil {
		return err
	}

	pc, err := loadPolicy(ctx, opts.PolicyFname, opts.PowPrefix)
	if err != nil {
		return err
	}

	filters := make([]logging.Filterer, 0, len(pc.LogFilters))
	for _, f := range pc.LogFilters {
		filters = append(filters, f)
	}

	h, closer, err := logging.Setup(pc.Logging, opts.SlogLevel, filters...)
	if err != nil {
		return fmt.Errorf("can't set up logging: %w", err)
	}
	defer closer.Close()

	lg := slog.New(h)
	slog.SetDefault(lg)

	dbPath, err := sqlitedb.PathFromURL(opts.DatabaseURL)
	if err != nil {
		return err
	}

	boards, err := boardsqlite.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("can't open board database %s: %w", dbPath, err)
	}
	defer boards.Close()

	kv, err := kvsqlite.New(ctx, boards.DB())
	if err != nil {
		return err
	}

	st, err := pc.OpenStore(ctx, kv)
	if err != nil {
		return err
	}

	if !st.IsPersistent() {
		lg.Warn("challenges and receipts are kept in memory and are lost on restart")
	}

	repo := challenge.NewRepository(st)
	ldg := ledger.New(st, opts.OpReceiptTTL)

	issuer, err := challenge.NewIssuer(challenge.IssuerOptions{
		Repository:    repo,
		Ledger:        ldg,
		DefaultPrefix: pc.Difficulty.Default,
		TTL:           opts.ChallengeTTL,
		Difficulty:    pc.Difficulty,
		Load:          challenge.SystemLoad,
		Logger:        lg.With("component", "issuer"),
	})
	if err != nil {
		return fmt.Errorf("can't create challenge issuer: %w", err)
	}

	srv, err := lib.New(lib.Options{
		Issuer:   issuer,
		Verifier: challenge.NewVerifier(challenge.VerifierOptions{Repository: repo, Logger: lg.With("component", "verifier")}),
		Repo:     repo,
		Ledger:   ldg,
		Commits:  commit.NewRecorder(st),
		Boards:   boards,
		Logger:   lg,
	})
	if err != nil {
		return err
	}

	errorLog := logging.StdlibLogger(h, slog.LevelDebug)

	httpSrv := &http.Server{
		Addr:              bind.HTTP,
		Handler:           srv,
		ErrorLog:          errorLog,
		ReadHeaderTimeout: 10 * time.Second,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              bind.Metrics,
		Handler:           mux,
		ErrorLog:          errorLog,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 2)
	for name, s := range map[string]*http.Server{"http": httpSrv, "metrics": metricsSrv} {
		go func() {
			lg.Info("listening", "kind", name, "addr", s.Addr, "version", chorum.Version)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("%s server: %w", name, err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		lg.Info("shutting down")
	case runErr = <-errs:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, s := range []*http.Server{httpSrv, metricsSrv} {
		if err := s.Shutdown(shutdownCtx); err != nil {
			lg.Error("can't shut down server", "addr", s.Addr, "err", err)
		}
	}

	return runErr
}

func loadPolicy(ctx context.Context, fname, defaultPrefix string) (*policy.ParsedConfig, error) {
	var (
		fin io.ReadCloser
		err error
	)

	if fname == "" {
		fname = "(data)/policy.yaml"
		fin, err = data.Policies.Open("policy.yaml")
	} else {
		fin, err = os.Open(fname)
	}
	if err != nil {
		return nil, fmt.Errorf("can't open policy file %s: %w", fname, err)
	}
	defer fin.Close()

	pc, err := policy.ParseConfig(ctx, fin, fname, defaultPrefix)
	if err != nil {
		return nil, fmt.Errorf("can't parse policy file %s: %w", fname, err)
	}

	return pc, nil
}
