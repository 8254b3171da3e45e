package parser

import (
	"fmt"
	"unicode/utf8"
)

// DecodeKind tags the reason a line could not be decoded.
type DecodeKind int

const (
	KindSyntax       DecodeKind = iota + 1 // not valid JSON
	KindNotObject                          // valid JSON, but not an object
	KindMissingField                       // required key absent
	KindWrongType                          // key present with a non-string value
	KindTimestamp                          // ts is not ISO8601
)

func (k DecodeKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindNotObject:
		return "not_object"
	case KindMissingField:
		return "missing_field"
	case KindWrongType:
		return "wrong_type"
	case KindTimestamp:
		return "timestamp"
	}
	return "unknown"
}

const maxQuotedLine = 80

// DecodeError is returned for a line that is not a well-formed event.
type DecodeError struct {
	Line  int    // 1-based, 0 when the caller did not supply it
	Text  string // the offending line
	Kind  DecodeKind
	Field string // set for KindMissingField, KindWrongType and KindTimestamp
	Err   error
}

func (e *DecodeError) Error() string {
	where := "bad JSON"
	if e.Line > 0 {
		where = fmt.Sprintf("bad JSON on line %d", e.Line)
	}

	var reason string
	switch e.Kind {
	case KindNotObject:
		reason = "expected a JSON object"
	case KindMissingField:
		reason = fmt.Sprintf("missing required field %q", e.Field)
	case KindWrongType:
		reason = fmt.Sprintf("field %q must be a string", e.Field)
	case KindTimestamp:
		reason = fmt.Sprintf("field %q: %v", e.Field, e.Err)
	default:
		reason = fmt.Sprint(e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", where, reason, quote(e.Text))
}

func (e *DecodeError) Unwrap() error { return e.Err }

func quote(s string) string {
	if len(s) > maxQuotedLine {
		cut := maxQuotedLine
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return fmt.Sprintf("%q", s)
}
