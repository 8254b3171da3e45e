package stream

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/atikulmunna/logkit/internal/model"
	"github.com/atikulmunna/logkit/internal/parser"
)

// DefaultMaxLineSize caps a single line; longer lines abort the stream.
const DefaultMaxLineSize = 1 * datasize.MB

// FileAccessError reports a missing or unreadable input file.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// Options control how a Stream decodes and filters lines.
type Options struct {
	Filter      model.Filter
	Strict      bool              // abort on the first malformed line
	MaxLineSize datasize.ByteSize // 0 means DefaultMaxLineSize
	Log         logrus.FieldLogger
}

// Stats counts what happened to each line read so far.
type Stats struct {
	Lines     int `json:"lines"`
	Blank     int `json:"blank"`
	Malformed int `json:"malformed"`
	Filtered  int `json:"filtered"`
	Yielded   int `json:"yielded"`
}

// Stream is a one-shot, pull-based sequence of filtered events read from a
// line-delimited JSON source. Call Next until it returns false, then check Err.
type Stream struct {
	name    string
	src     io.Closer
	scanner *bufio.Scanner
	dec     *parser.Decoder
	opts    Options
	log     logrus.FieldLogger

	matchAll bool // no filter predicate is set

	cur   model.Event
	err   error
	done  bool
	stats Stats
}

// Open opens path and returns a Stream over its lines.
func Open(path string, opts Options) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileAccessError{Path: path, Err: err}
	}
	if fi, err := f.Stat(); err == nil && fi.IsDir() {
		f.Close()
		return nil, &FileAccessError{Path: path, Err: errors.New("is a directory")}
	}

	s := New(f, path, opts)
	s.src = f
	return s, nil
}

// New returns a Stream over r. name is used in errors and logs.
// The caller keeps ownership of r.
func New(r io.Reader, name string, opts Options) *Stream {
	if opts.MaxLineSize == 0 {
		opts.MaxLineSize = DefaultMaxLineSize
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	scanner := bufio.NewScanner(r)
	limit := int(opts.MaxLineSize.Bytes())
	scanner.Buffer(make([]byte, 0, min(64*1024, limit)), limit)

	return &Stream{
		name:     name,
		scanner:  scanner,
		dec:      parser.NewDecoder(),
		opts:     opts,
		log:      log.WithField("source", name),
		matchAll: opts.Filter.IsZero(),
	}
}

// Next advances to the next event that decodes and passes the filter.
// It returns false at end of input or on a fatal error.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	for s.scanner.Scan() {
		s.stats.Lines++
		lineNo := s.stats.Lines
		raw := s.scanner.Text()

		// Whitespace-only lines are not events in either mode.
		if strings.TrimSpace(raw) == "" {
			s.stats.Blank++
			continue
		}

		entry, err := s.dec.DecodeLine(lineNo, raw)
		if err != nil {
			if s.opts.Strict {
				return s.fail(err)
			}
			s.stats.Malformed++
			s.logSkipped(lineNo, err)
			continue
		}

		if !s.matchAll && !s.opts.Filter.Match(entry) {
			s.stats.Filtered++
			continue
		}

		s.stats.Yielded++
		s.cur = entry
		return true
	}

	if err := s.scanner.Err(); err != nil {
		return s.fail(errors.Wrapf(err, "reading %s after line %d", s.name, s.stats.Lines))
	}
	s.finish()
	return false
}

// Event returns the event produced by the last successful Next.
func (s *Stream) Event() model.Event {
	return s.cur
}

// Err returns the error that stopped the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Stats returns line accounting for the lines consumed so far.
func (s *Stream) Stats() Stats {
	return s.stats
}

// All adapts the stream to a range-over-func sequence. The sequence can be
// ranged over once; check Err afterwards.
func (s *Stream) All() iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		for s.Next() {
			if !yield(s.cur) {
				return
			}
		}
	}
}

// Close releases the underlying file, if the stream owns one.
func (s *Stream) Close() error {
	s.done = true
	if s.src == nil {
		return nil
	}
	err := s.src.Close()
	s.src = nil
	return err
}

func (s *Stream) fail(err error) bool {
	s.err = err
	s.finish()
	return false
}

func (s *Stream) finish() {
	if err := s.Close(); err != nil {
		s.log.Warnf("close failed: %v", err)
	}
	s.log.WithFields(logrus.Fields{
		"lines":     s.stats.Lines,
		"blank":     s.stats.Blank,
		"malformed": s.stats.Malformed,
		"filtered":  s.stats.Filtered,
		"yielded":   s.stats.Yielded,
	}).Debug("stream finished")
}

func (s *Stream) logSkipped(lineNo int, err error) {
	fields := logrus.Fields{"line": lineNo}
	var de *parser.DecodeError
	if errors.As(err, &de) {
		fields["kind"] = de.Kind.String()
		if de.Field != "" {
			fields["field"] = de.Field
		}
	}
	s.log.WithFields(fields).Debug("skipping malformed line")
}
