package nanoql

import (
	"strings"
)

// Record is anything a query can be evaluated against.
type Record interface {
	// Field returns the text of a named field and whether it is present.
	Field(name string) (string, bool)
	// Text is the body free-text terms are searched in.
	Text() string
}

// Match evaluates the AST node against a Record and returns true if it matches.
func Match(node Node, rec Record) bool {
	if node == nil {
		return true // No filter means match all
	}

	switch n := node.(type) {
	case MatchAll:
		return true
	case BinaryExpr:
		return evalBinary(n, rec)
	case MatchExpr:
		return evalMatch(n, rec)
	case NotExpr:
		return !Match(n.Expr, rec)
	default:
		return false
	}
}

func evalBinary(expr BinaryExpr, rec Record) bool {
	switch expr.Op {
	case "AND":
		return Match(expr.Left, rec) && Match(expr.Right, rec)
	case "OR":
		return Match(expr.Left, rec) || Match(expr.Right, rec)
	default:
		return false
	}
}

func evalMatch(expr MatchExpr, rec Record) bool {
	if expr.Key == "" {
		return containsIgnoreCase(rec.Text(), expr.Value)
	}

	fieldValue, present := rec.Field(expr.Key)

	switch expr.Op {
	case "!=":
		return !present || !matchEqual(fieldValue, expr.Value)
	case "CONTAINS":
		return present && containsIgnoreCase(fieldValue, expr.Value)
	default:
		if expr.Value == "*" {
			return present
		}
		return present && matchEqual(fieldValue, expr.Value)
	}
}

// matchEqual performs case-insensitive equality check.
func matchEqual(fieldValue, queryValue string) bool {
	return strings.EqualFold(fieldValue, queryValue)
}

// containsIgnoreCase checks if haystack contains needle (case-insensitive).
func containsIgnoreCase(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
