package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrExpressionOrListMustBeStringOrObject = errors.New("config: this must be a string or an object")
	ErrExpressionEmpty                      = errors.New("config: this expression is empty")
	ErrExpressionCantHaveBoth               = errors.New("config: expression block can't contain multiple expression types")
)

// ExpressionOrList is either a single CEL expression or a list of them
// joined with && (and) or || (or).
type ExpressionOrList struct {
	Expression string   `json:"-"`
	And        []string `json:"and,omitempty"`
	Or         []string `json:"or,omitempty"`
}

func (eol ExpressionOrList) String() string {
	switch {
	case len(eol.Expression) != 0:
		return eol.Expression
	case len(eol.And) != 0:
		return join(eol.And, " && ")
	case len(eol.Or) != 0:
		return join(eol.Or, " || ")
	}
	return ""
}

func join(preds []string, op string) string {
	var sb strings.Builder
	for i, pred := range preds {
		if i != 0 {
			sb.WriteString(op)
		}
		fmt.Fprintf(&sb, "( %s )", pred)
	}
	return sb.String()
}

func (eol ExpressionOrList) Equal(rhs *ExpressionOrList) bool {
	if eol.Expression != rhs.Expression {
		return false
	}

	if !slices.Equal(eol.And, rhs.And) {
		return false
	}

	if !slices.Equal(eol.Or, rhs.Or) {
		return false
	}

	return true
}

func (eol ExpressionOrList) MarshalJSON() ([]byte, error) {
	if eol.Expression != "" {
		return json.Marshal(eol.Expression)
	}

	type RawExpressionOrList ExpressionOrList
	return json.Marshal(RawExpressionOrList(eol))
}

func (eol *ExpressionOrList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return ErrExpressionOrListMustBeStringOrObject
	}

	switch string(data[0]) {
	case `"`: // string
		return json.Unmarshal(data, &eol.Expression)
	case "{": // object
		type RawExpressionOrList ExpressionOrList
		var val RawExpressionOrList
		if err := json.Unmarshal(data, &val); err != nil {
			return err
		}
		eol.And = val.And
		eol.Or = val.Or

		return nil
	}

	return ErrExpressionOrListMustBeStringOrObject
}

func (eol *ExpressionOrList) Valid() error {
	if eol.Expression == "" && len(eol.And) == 0 && len(eol.Or) == 0 {
		return ErrExpressionEmpty
	}

	if len(eol.And) != 0 && len(eol.Or) != 0 {
		return ErrExpressionCantHaveBoth
	}

	if eol.Expression != "" && (len(eol.And) != 0 || len(eol.Or) != 0) {
		return ErrExpressionCantHaveBoth
	}

	return nil
}
