package expressions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var (
	filterInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorum",
		Name:      "slog_filter_invocations",
		Help:      "The number of times each log filter ran",
	}, []string{"name", "result"})

	filterExecutionTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chorum",
		Name:      "slog_filter_execution_time_nanoseconds",
		Help:      "How long each log filter took to run",
		Buckets:   prometheus.ExponentialBuckets(10, 4, 10), // 10ns to ~2.6ms
	}, []string{"name"})
)

// LogFilter is the environment log filters are evaluated in. attrs maps
// every attribute to its string form; grouped keys are joined with dots,
// so a scope bound inside a "commit" group is attrs["commit.scope"].
func LogFilter(opts ...cel.EnvOption) (*cel.Env, error) {
	args := []cel.EnvOption{
		cel.Variable("time", cel.TimestampType),
		cel.Variable("msg", cel.StringType),
		cel.Variable("level", cel.StringType),
		cel.Variable("attrs", cel.MapType(cel.StringType, cel.StringType)),
	}

	return New(append(args, opts...)...)
}

func NewFilter(lg *slog.Logger, name, src string) (*Filter, error) {
	env, err := LogFilter()
	if err != nil {
		return nil, fmt.Errorf("logging: can't create CEL env: %w", err)
	}

	program, err := Compile(env, src)
	if err != nil {
		return nil, fmt.Errorf("logging: can't compile expression: Compile(%q): %w", src, err)
	}

	return &Filter{
		program: program,
		name:    name,
		src:     src,
		log:     lg.With("filter", name),
	}, nil
}

// Filter drops the slog records its expression matches. A record the
// expression fails on is kept.
type Filter struct {
	program cel.Program
	name    string
	src     string
	log     *slog.Logger
}

func (f *Filter) Name() string { return f.name }

// Filter reports whether r should be kept.
func (f *Filter) Filter(ctx context.Context, r slog.Record) bool {
	t0 := time.Now()
	result, _, err := f.program.ContextEval(ctx, NewRecord(r))
	filterExecutionTime.WithLabelValues(f.name).Observe(float64(time.Since(t0).Nanoseconds()))

	if err != nil {
		filterInvocations.WithLabelValues(f.name, "error").Inc()
		f.log.Error("error executing log filter", "err", err, "src", f.src)
		return true
	}

	drop, _ := result.(types.Bool)
	if drop {
		filterInvocations.WithLabelValues(f.name, "drop").Inc()
		return false
	}

	filterInvocations.WithLabelValues(f.name, "keep").Inc()
	return true
}

// Record exposes a slog record to CEL.
type Record struct {
	slog.Record
	attrs map[string]string
}

func NewRecord(r slog.Record) *Record {
	return &Record{Record: r}
}

func (r *Record) Parent() cel.Activation { return nil }

func (r *Record) ResolveName(name string) (any, bool) {
	switch name {
	case "time":
		return timestamppb.New(r.Time), true
	case "msg":
		return r.Message, true
	case "level":
		return r.Level.String(), true
	case "attrs":
		if r.attrs == nil {
			r.attrs = map[string]string{}
			r.Attrs(func(a slog.Attr) bool {
				flatten(r.attrs, "", a)
				return true
			})
		}
		return r.attrs, true
	default:
		return nil, false
	}
}

func flatten(into map[string]string, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := prefix + a.Key

	if v.Kind() != slog.KindGroup {
		into[key] = v.String()
		return
	}

	// Inline groups (empty key) add their members at the current level.
	if a.Key != "" {
		prefix = key + "."
	}
	for _, member := range v.Group() {
		flatten(into, prefix, member)
	}
}
