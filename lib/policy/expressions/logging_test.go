package expressions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func BenchmarkFilter(b *testing.B) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	filter, err := NewFilter(log, "benchmark", `msg == "hello"`)
	if err != nil {
		b.Fatalf("NewFilter() error = %v", err)
	}

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	record.AddAttrs(slog.String("foo", "bar"))

	ctx := context.Background()

	b.ReportAllocs()

	for b.Loop() {
		filter.Filter(ctx, record)
	}
}

func BenchmarkFilterAttributes(b *testing.B) {
	for _, numAttrs := range []int{1, 2, 4, 8, 16, 32} {
		b.Run(fmt.Sprintf("%d_attributes", numAttrs), func(b *testing.B) {
			log := slog.New(slog.NewTextHandler(io.Discard, nil))

			var sb strings.Builder
			sb.WriteString(`msg == "hello" && "foo" in attrs`)

			attrs := make([]slog.Attr, numAttrs)
			for i := range numAttrs {
				key := fmt.Sprintf("foo%d", i)
				val := "bar"
				attrs[i] = slog.String(key, val)
			}

			filter, err := NewFilter(log, "benchmark", sb.String())
			if err != nil {
				b.Fatalf("NewFilter() error = %v", err)
			}

			record := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
			record.AddAttrs(attrs...)

			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()

			for b.Loop() {
				filter.Filter(ctx, record)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, tt := range []struct {
		name  string
		src   string
		msg   string
		level slog.Level
		attrs []slog.Attr
		keep  bool
	}{
		{
			name: "message match drops",
			src:  `msg == "hello"`,
			msg:  "hello",
			keep: false,
		},
		{
			name: "message mismatch keeps",
			src:  `msg == "hello"`,
			msg:  "goodbye",
			keep: true,
		},
		{
			name:  "attribute match drops",
			src:   `"scope" in attrs && attrs["scope"] == "reply"`,
			msg:   "challenge issued",
			attrs: []slog.Attr{slog.String("scope", "reply")},
			keep:  false,
		},
		{
			name:  "level match drops",
			src:   `level == "DEBUG"`,
			msg:   "noise",
			level: slog.LevelDebug,
			keep:  false,
		},
		{
			name:  "grouped attribute match drops",
			src:   `attrs["commit.scope"] == "reply"`,
			msg:   "proof rejected",
			attrs: []slog.Attr{slog.Group("commit", slog.String("scope", "reply"))},
			keep:  false,
		},
		{
			name:  "inline group flattens at top level",
			src:   `attrs["scope"] == "reply"`,
			msg:   "proof rejected",
			attrs: []slog.Attr{slog.Group("", slog.String("scope", "reply"))},
			keep:  false,
		},
		{
			name: "time is the record time",
			src:  `time > timestamp("2020-01-01T00:00:00Z")`,
			msg:  "recent",
			keep: false,
		},
		{
			name:  "runtime error keeps",
			src:   `attrs["missing"] == "x"`,
			msg:   "anything",
			level: slog.LevelInfo,
			keep:  true,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := NewFilter(log, tt.name, tt.src)
			if err != nil {
				t.Fatalf("NewFilter() error = %v", err)
			}

			record := slog.NewRecord(time.Now(), tt.level, tt.msg, 0)
			record.AddAttrs(tt.attrs...)

			if got := filter.Filter(t.Context(), record); got != tt.keep {
				t.Errorf("Filter() = %v, want %v", got, tt.keep)
			}
		})
	}
}

func TestNewFilterBadExpression(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewFilter(log, "broken", `msg ==`); err == nil {
		t.Fatal("compiled a broken expression")
	}

	if _, err := NewFilter(log, "not-bool", `msg`); err == nil {
		t.Fatal("compiled an expression that does not return a bool")
	}
}

func TestFilterName(t *testing.T) {
	filter, err := NewFilter(slog.New(slog.NewTextHandler(io.Discard, nil)), "drop-replays", `msg == "x"`)
	if err != nil {
		t.Fatal(err)
	}

	if got := filter.Name(); got != "drop-replays" {
		t.Errorf("Name() = %q", got)
	}
}
