// Package expressions builds the CEL environments chorum policies are
// written against.
package expressions

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

var ErrNotBool = errors.New("expressions: expression must return a bool")

// New creates the base CEL environment shared by every policy expression.
// Extra variables and functions go in opts.
func New(opts ...cel.EnvOption) (*cel.Env, error) {
	args := []cel.EnvOption{
		ext.Strings(
			ext.StringsLocale("en_US"),
			ext.StringsValidateFormatCalls(true),
		),

		// default all timestamps to UTC
		cel.DefaultUTCTimeZone(true),
	}

	args = append(args, opts...)
	return cel.NewEnv(args...)
}

// Difficulty is the environment difficulty tiers are evaluated in.
func Difficulty() (*cel.Env, error) {
	return New(
		// Challenge metadata
		cel.Variable("scope", cel.StringType),
		cel.Variable("recent", cel.IntType),

		// System load metadata
		cel.Variable("load_1m", cel.DoubleType),
		cel.Variable("load_5m", cel.DoubleType),
		cel.Variable("load_15m", cel.DoubleType),
	)
}

// Compile parses and type-checks src in env, then emits an optimized
// Program for execution. src must evaluate to a bool.
func Compile(env *cel.Env, src string) (cel.Program, error) {
	intermediate, iss := env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}

	if !intermediate.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q returns %s", ErrNotBool, src, intermediate.OutputType())
	}

	return env.Program(
		intermediate,
		cel.EvalOptions(
			// optimize regular expressions right now instead of on the fly
			cel.OptOptimize,
		),
	)
}
