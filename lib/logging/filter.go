package logging

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var recordsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chorum",
	Name:      "log_records_dropped",
	Help:      "Log records dropped by each filter",
}, []string{"filter"})

// Filterer decides whether a record is kept. The record it sees carries
// the attributes bound with Logger.With as well as the call-site ones.
type Filterer interface {
	Filter(ctx context.Context, r slog.Record) bool
}

// FilterFunc lets you make inline log filters with plain functions.
type FilterFunc func(ctx context.Context, r slog.Record) bool

func (ff FilterFunc) Filter(ctx context.Context, r slog.Record) bool {
	return ff(ctx, r)
}

// filterName labels drop counts. Filters with a Name method use it.
func filterName(f Filterer) string {
	if n, ok := f.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "func"
}

// FilterHandler drops records any of its filters rejects before they reach
// next.
type FilterHandler struct {
	next    slog.Handler
	filters []Filterer

	// bound holds With attrs, keys qualified by the groups open at the time.
	bound  []slog.Attr
	groups string
}

func NewFilterHandler(handler slog.Handler, filters ...Filterer) *FilterHandler {
	return &FilterHandler{
		next:    handler,
		filters: filters,
	}
}

func (h *FilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *FilterHandler) Handle(ctx context.Context, r slog.Record) error {
	seen := r
	if len(h.bound) != 0 {
		seen = r.Clone()
		seen.AddAttrs(h.bound...)
	}

	for _, f := range h.filters {
		if !f.Filter(ctx, seen) {
			recordsDropped.WithLabelValues(filterName(f)).Inc()
			return nil
		}
	}

	return h.next.Handle(ctx, r)
}

func (h *FilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make([]slog.Attr, 0, len(h.bound)+len(attrs))
	bound = append(bound, h.bound...)
	for _, a := range attrs {
		if h.groups != "" {
			a.Key = h.groups + a.Key
		}
		bound = append(bound, a)
	}

	return &FilterHandler{
		next:    h.next.WithAttrs(attrs),
		filters: h.filters,
		bound:   bound,
		groups:  h.groups,
	}
}

func (h *FilterHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	return &FilterHandler{
		next:    h.next.WithGroup(name),
		filters: h.filters,
		bound:   h.bound,
		groups:  h.groups + name + ".",
	}
}
