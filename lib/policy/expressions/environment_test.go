package expressions

import (
	"errors"
	"testing"

	"github.com/google/cel-go/common/types"
)

func TestDifficultyEnvironment(t *testing.T) {
	env, err := Difficulty()
	if err != nil {
		t.Fatalf("failed to create difficulty environment: %v", err)
	}

	tests := []struct {
		variables     map[string]any
		name          string
		expression    string
		description   string
		expected      types.Bool
		shouldCompile bool
	}{
		{
			name:          "recent-available",
			expression:    `recent > 100`,
			variables:     map[string]any{"recent": 150},
			expected:      types.Bool(true),
			description:   "should support recent variable in expressions",
			shouldCompile: true,
		},
		{
			name:          "scope-and-load",
			expression:    `scope == "thread" && load_1m >= 2.0`,
			variables:     map[string]any{"scope": "thread", "load_1m": 2.5},
			expected:      types.Bool(true),
			description:   "should combine scope and load",
			shouldCompile: true,
		},
		{
			name:          "reply-scope",
			expression:    `scope == "thread"`,
			variables:     map[string]any{"scope": "reply"},
			expected:      types.Bool(false),
			description:   "should correctly compare scopes",
			shouldCompile: true,
		},
		{
			name:          "load-15m",
			expression:    `load_15m < load_5m`,
			variables:     map[string]any{"load_5m": 3.0, "load_15m": 1.0},
			expected:      types.Bool(true),
			description:   "should expose every load average",
			shouldCompile: true,
		},
		{
			name:          "request-variables-not-available",
			expression:    `userAgent == "curl"`,
			description:   "should not know about http request variables",
			shouldCompile: false,
		},
		{
			name:          "recent-is-an-int",
			expression:    `recent == "many"`,
			description:   "should reject comparing an int to a string",
			shouldCompile: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Compile(env, tt.expression)

			if !tt.shouldCompile {
				if err == nil {
					t.Fatalf("%s: expected compilation to fail but it succeeded", tt.description)
				}
				return
			}

			if err != nil {
				t.Fatalf("failed to compile expression %q: %v", tt.expression, err)
			}

			result, _, err := prog.Eval(tt.variables)
			if err != nil {
				t.Fatalf("failed to evaluate expression %q: %v", tt.expression, err)
			}

			if result != tt.expected {
				t.Errorf("%s: expected %v, got %v", tt.description, tt.expected, result)
			}
		})
	}
}

func TestNewEnvironment(t *testing.T) {
	env, err := New()
	if err != nil {
		t.Fatalf("failed to create new environment: %v", err)
	}

	for _, tt := range []struct {
		name       string
		expression string
	}{
		{"strings-extension-size", `"hello".size() == 5`},
		{"strings-extension-contains", `"hello world".contains("world")`},
		{"strings-extension-startsWith", `"hello world".startsWith("hello")`},
		{"strings-extension-lowerAscii", `"HeLLo".lowerAscii() == "hello"`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Compile(env, tt.expression)
			if err != nil {
				t.Fatalf("failed to compile expression %q: %v", tt.expression, err)
			}

			result, _, err := prog.Eval(map[string]any{})
			if err != nil {
				t.Fatalf("failed to evaluate expression %q: %v", tt.expression, err)
			}

			if result != types.Bool(true) {
				t.Errorf("%q: got %v", tt.expression, result)
			}
		})
	}
}

func TestCompileNeedsBool(t *testing.T) {
	env, err := New()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Compile(env, `"hello".size()`); !errors.Is(err, ErrNotBool) {
		t.Fatalf("wanted %v, got: %v", ErrNotBool, err)
	}
}
