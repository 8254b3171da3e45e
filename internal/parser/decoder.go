package parser

import (
	"github.com/valyala/fastjson"

	"github.com/atikulmunna/logkit/internal/model"
)

// Field names recognized in each line-delimited JSON object.
const (
	FieldTimestamp = "ts"
	FieldLevel     = "level"
	FieldMessage   = "msg"
	FieldSourceIP  = "src_ip"
)

// DefaultLevel is used when a line carries no level field.
const DefaultLevel = "UNKNOWN"

// ---------------------------------------------------------------------------
// Decoder
// ---------------------------------------------------------------------------

// Decoder decodes line-delimited JSON events.
// The zero value is ready to use; a Decoder is not safe for concurrent use
// because it reuses its fastjson parser between lines.
type Decoder struct {
	p fastjson.Parser
}

func NewDecoder() *Decoder { return &Decoder{} }

// DecodeLine decodes raw and tags any failure with lineNo.
func (d *Decoder) DecodeLine(lineNo int, raw string) (model.Event, error) {
	v, err := d.p.Parse(raw)
	if err != nil {
		return model.Event{}, &DecodeError{Line: lineNo, Text: raw, Kind: KindSyntax, Err: err}
	}
	return eventFromValue(lineNo, raw, v)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// eventFromValue copies the recognized fields out of v. Strings are copied,
// so the result stays valid after the parser is reused.
func eventFromValue(lineNo int, raw string, v *fastjson.Value) (model.Event, error) {
	fail := func(kind DecodeKind, field string, err error) (model.Event, error) {
		return model.Event{}, &DecodeError{Line: lineNo, Text: raw, Kind: kind, Field: field, Err: err}
	}

	if v.Type() != fastjson.TypeObject {
		return fail(KindNotObject, "", nil)
	}

	tsText, ok, err := strField(v, FieldTimestamp)
	if err != nil {
		return fail(KindWrongType, FieldTimestamp, err)
	}
	if !ok {
		return fail(KindMissingField, FieldTimestamp, nil)
	}
	ts, err := ParseTimestamp(tsText)
	if err != nil {
		return fail(KindTimestamp, FieldTimestamp, err)
	}

	entry := model.Event{Timestamp: ts, Level: DefaultLevel, Line: lineNo}

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{FieldLevel, &entry.Level},
		{FieldMessage, &entry.Message},
		{FieldSourceIP, &entry.SourceIP},
	} {
		s, ok, err := strField(v, f.name)
		if err != nil {
			return fail(KindWrongType, f.name, err)
		}
		if ok {
			*f.dst = s
		}
	}

	return entry, nil
}

// strField returns the string value stored under key. ok is false when the
// key is absent; err is set when it holds anything other than a string.
func strField(v *fastjson.Value, key string) (s string, ok bool, err error) {
	fv := v.Get(key)
	if fv == nil {
		return "", false, nil
	}
	b, err := fv.StringBytes()
	if err != nil {
		return "", true, err
	}
	return string(b), true, nil
}
