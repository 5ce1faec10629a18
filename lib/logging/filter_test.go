package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type namedFilter struct {
	name string
	drop func(slog.Record) bool
}

func (f namedFilter) Name() string { return f.name }

func (f namedFilter) Filter(_ context.Context, r slog.Record) bool { return !f.drop(r) }

func TestFilterHandler(t *testing.T) {
	var buf bytes.Buffer

	dropReplays := FilterFunc(func(_ context.Context, r slog.Record) bool {
		return r.Message != "replaying begin from receipt"
	})

	lg := slog.New(NewFilterHandler(NewHandler(&buf, slog.LevelInfo), dropReplays))
	lg = lg.With("component", "issuer").WithGroup("req")

	lg.Info("replaying begin from receipt", "op_id", "a")
	lg.Info("challenge issued", "op_id", "b")

	out := buf.String()

	if strings.Contains(out, "replaying") {
		t.Errorf("filtered record was written: %q", out)
	}

	if !strings.Contains(out, "challenge issued") {
		t.Errorf("unfiltered record is missing: %q", out)
	}

	if !strings.Contains(out, `"component":"issuer"`) {
		t.Errorf("WithAttrs did not survive filtering: %q", out)
	}
}

func TestFilterSeesBoundAttrs(t *testing.T) {
	var buf bytes.Buffer

	dropVerifier := namedFilter{name: "quiet-verifier", drop: func(r slog.Record) bool {
		var component, scope string
		r.Attrs(func(a slog.Attr) bool {
			switch a.Key {
			case "component":
				component = a.Value.String()
			case "commit.scope":
				scope = a.Value.String()
			}
			return true
		})
		return component == "verifier" && scope == "reply"
	}}

	before := testutil.ToFloat64(recordsDropped.WithLabelValues("quiet-verifier"))

	base := slog.New(NewFilterHandler(NewHandler(&buf, slog.LevelInfo), dropVerifier))
	verifier := base.With("component", "verifier").WithGroup("commit")

	verifier.With("scope", "reply").Info("proof rejected")
	verifier.With("scope", "thread").Info("proof accepted")
	base.With("component", "issuer").Info("challenge issued", "scope", "reply")

	out := buf.String()

	if strings.Contains(out, "proof rejected") {
		t.Errorf("record matching bound attrs was written: %q", out)
	}

	for _, want := range []string{"proof accepted", "challenge issued"} {
		if !strings.Contains(out, want) {
			t.Errorf("%q is missing: %q", want, out)
		}
	}

	if got := testutil.ToFloat64(recordsDropped.WithLabelValues("quiet-verifier")) - before; got != 1 {
		t.Errorf("drop count = %v, want 1", got)
	}
}

func TestStdlibLogger(t *testing.T) {
	var buf bytes.Buffer

	lg := StdlibLogger(NewHandler(&buf, slog.LevelInfo), slog.LevelWarn)
	lg.Println("http: TLS handshake error")
	lg.Print("plain line\nsecond line")

	out := buf.String()

	if got := strings.Count(out, "\n"); got != 3 {
		t.Errorf("want 3 records, got %d: %q", got, out)
	}

	for _, want := range []string{`"level":"WARN"`, `"msg":"TLS handshake error"`, `"subsystem":"http"`, `"msg":"second line"`} {
		if !strings.Contains(out, want) {
			t.Errorf("%s missing from %q", want, out)
		}
	}
}

func TestStdlibLoggerBelowLevel(t *testing.T) {
	var buf bytes.Buffer

	lg := StdlibLogger(NewHandler(&buf, slog.LevelError), slog.LevelDebug)
	lg.Println("http: noisy")

	if buf.Len() != 0 {
		t.Errorf("disabled level was written: %q", buf.String())
	}
}
