package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/facebookgo/flagenv"
	"github.com/joho/godotenv"

	"github.com/nozmo-king/chorum"
	"github.com/nozmo-king/chorum/cmd/chorum/internal/entrypoint"
)

var (
	basePrefix    = flag.String("base-prefix", "", "base prefix (root URL) the application is served under e.g. /board")
	bind          = flag.String("bind", "", "host to listen on, combined with --port")
	databaseURL   = flag.String("database-url", "sqlite://chorum.db", "board database, sqlite://path")
	metricsBind   = flag.String("metrics-bind", ":9090", "network address to serve prometheus metrics on")
	opReceiptTTL  = flag.Duration("op-receipt-ttl", 7*24*time.Hour, "how long client operation receipts are kept, 0 keeps them forever")
	policyFname   = flag.String("policy-fname", "", "full path to a chorum policy file, default is the embedded policy")
	port          = flag.Int("port", 3000, "port to listen on")
	powPrefix     = flag.String("pow-default-prefix", chorum.DefaultRequiredPrefix, "hex prefix every proof digest must start with unless a policy tier says otherwise")
	powTTLSeconds = flag.Int("pow-challenge-ttl-seconds", chorum.DefaultChallengeTTLSeconds, "seconds a client has to solve a challenge")
	slogLevel     = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	versionFlag   = flag.Bool("version", false, "if true, show version information then quit")
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "can't load .env: %v\n", err)
		os.Exit(1)
	}

	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("Chorum", chorum.Version)
		return
	}

	chorum.BasePrefix = *basePrefix

	if err := entrypoint.Main(entrypoint.Options{
		Bind:         fmt.Sprintf("%s:%d", *bind, *port),
		MetricsBind:  *metricsBind,
		DatabaseURL:  *databaseURL,
		PolicyFname:  *policyFname,
		SlogLevel:    *slogLevel,
		PowPrefix:    *powPrefix,
		ChallengeTTL: time.Duration(*powTTLSeconds) * time.Second,
		OpReceiptTTL: *opReceiptTTL,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
