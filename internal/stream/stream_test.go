package stream

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/logkit/internal/model"
	"github.com/atikulmunna/logkit/internal/parser"
)

const sample = `{"ts":"2026-01-30T05:00:00Z","level":"INFO","msg":"service started","src_ip":"10.0.0.5"}
{"ts":"2026-01-30T05:00:01Z","level":"WARN","msg":"login failed for bob","src_ip":"10.0.0.8"}
not json at all
{"ts":"2026-01-30T05:00:03Z","level":"WARN","msg":"Login FAILED for alice","src_ip":"10.0.0.5"}

{"ts":"2026-01-30T05:00:04Z","level":"ERROR","msg":"disk full","src_ip":"10.0.0.9"}
{"ts":"2026-01-30T05:00:05Z","level":"INFO","msg":"heartbeat","src_ip":"10.0.0.5"}
`

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func collect(t *testing.T, s *Stream) []model.Event {
	t.Helper()
	var out []model.Event
	for s.Next() {
		out = append(out, s.Event())
	}
	return out
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLenientSkipsMalformed(t *testing.T) {
	s := New(strings.NewReader(sample), "sample", Options{Log: quietLogger()})

	events := collect(t, s)
	require.NoError(t, s.Err())
	require.Len(t, events, 5)

	assert.Equal(t, "service started", events[0].Message)
	assert.Equal(t, 1, events[0].Line)
	assert.Equal(t, 4, events[2].Line)
	assert.Equal(t, 7, events[4].Line)

	st := s.Stats()
	assert.Equal(t, Stats{Lines: 7, Blank: 1, Malformed: 1, Filtered: 0, Yielded: 5}, st)
}

func TestLenientYieldsNMinusK(t *testing.T) {
	var b strings.Builder
	const total, bad = 50, 7
	for i := 0; i < total; i++ {
		if i%7 == 3 {
			fmt.Fprintf(&b, "{broken %d\n", i)
			continue
		}
		fmt.Fprintf(&b, `{"ts":"2026-01-30T05:00:%02dZ","level":"INFO","msg":"m%d","src_ip":"10.0.0.1"}`+"\n", i, i)
	}

	s := New(strings.NewReader(b.String()), "gen", Options{Log: quietLogger()})
	events := collect(t, s)

	require.NoError(t, s.Err())
	assert.Len(t, events, total-bad)
	assert.Equal(t, bad, s.Stats().Malformed)
}

func TestStrictAbortsOnFirstMalformed(t *testing.T) {
	s := New(strings.NewReader(sample), "sample", Options{Strict: true, Log: quietLogger()})

	events := collect(t, s)
	require.Error(t, s.Err())
	assert.Len(t, events, 2, "events before the bad line are yielded, nothing after")

	var de *parser.DecodeError
	require.True(t, errors.As(s.Err(), &de))
	assert.Equal(t, 3, de.Line)
	assert.Equal(t, "not json at all", de.Text)
	assert.Contains(t, s.Err().Error(), "line 3")

	assert.False(t, s.Next(), "stream stays terminated")
}

func TestStrictSkipsBlankLines(t *testing.T) {
	input := "\n   \n\t\n" + `{"ts":"2026-01-30T05:00:00Z","level":"INFO","msg":"x","src_ip":"1.1.1.1"}` + "\n\n"
	s := New(strings.NewReader(input), "blank", Options{Strict: true, Log: quietLogger()})

	events := collect(t, s)
	require.NoError(t, s.Err())
	assert.Len(t, events, 1)
	assert.Equal(t, 4, s.Stats().Blank)
}

func TestCRLFLines(t *testing.T) {
	input := `{"ts":"2026-01-30T05:00:00Z","level":"INFO","msg":"x","src_ip":"1.1.1.1"}` + "\r\n" +
		`{"ts":"2026-01-30T05:00:01Z","level":"WARN","msg":"y","src_ip":"1.1.1.2"}` + "\r\n"
	s := New(strings.NewReader(input), "crlf", Options{Strict: true, Log: quietLogger()})

	events := collect(t, s)
	require.NoError(t, s.Err())
	assert.Len(t, events, 2)
}

func TestFilterInsideStream(t *testing.T) {
	s := New(strings.NewReader(sample), "sample", Options{
		Filter: model.Filter{SourceIP: "10.0.0.5", Contains: "login failed"},
		Log:    quietLogger(),
	})

	events := collect(t, s)
	require.NoError(t, s.Err())
	require.Len(t, events, 1)
	assert.Equal(t, "Login FAILED for alice", events[0].Message)
	assert.Equal(t, 4, s.Stats().Filtered)
}

func TestRangeBoundsInclusive(t *testing.T) {
	at := time.Date(2026, 1, 30, 5, 0, 3, 0, time.UTC)

	s := New(strings.NewReader(sample), "sample", Options{
		Filter: model.Filter{Since: &at, Until: &at},
		Log:    quietLogger(),
	})
	events := collect(t, s)
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(at))

	// One second outside either bound excludes the event.
	s = New(strings.NewReader(sample), "sample", Options{
		Filter: model.Filter{Since: timePtr(at.Add(time.Second)), Until: timePtr(at.Add(time.Second))},
		Log:    quietLogger(),
	})
	events = collect(t, s)
	require.Len(t, events, 1)
	assert.Equal(t, "disk full", events[0].Message)

	s = New(strings.NewReader(sample), "sample", Options{
		Filter: model.Filter{Since: timePtr(at.Add(time.Millisecond)), Until: timePtr(at.Add(999 * time.Millisecond))},
		Log:    quietLogger(),
	})
	assert.Empty(t, collect(t, s))
}

func timePtr(t time.Time) *time.Time { return &t }

func TestAllSequence(t *testing.T) {
	s := New(strings.NewReader(sample), "sample", Options{Log: quietLogger()})

	var levels []string
	for e := range s.All() {
		levels = append(levels, e.Level)
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []string{"INFO", "WARN", "WARN", "ERROR", "INFO"}, levels)
}

func TestAllEarlyBreak(t *testing.T) {
	s := New(strings.NewReader(sample), "sample", Options{Log: quietLogger()})

	for range s.All() {
		break
	}
	assert.Equal(t, 1, s.Stats().Yielded)
	assert.True(t, s.Next(), "breaking out of the range leaves the stream resumable")
}

func TestOpenFile(t *testing.T) {
	path := writeFile(t, sample)

	s, err := Open(path, Options{Log: quietLogger()})
	require.NoError(t, err)
	defer s.Close()

	assert.Len(t, collect(t, s), 5)
	require.NoError(t, s.Err())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.log"), Options{})
	require.Error(t, err)

	var fae *FileAccessError
	require.True(t, errors.As(err, &fae))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), "nope.log")
}

func TestOpenDirectory(t *testing.T) {
	_, err := Open(t.TempDir(), Options{})

	var fae *FileAccessError
	require.True(t, errors.As(err, &fae))
	assert.Contains(t, err.Error(), "is a directory")
}

func TestLineTooLong(t *testing.T) {
	long := `{"ts":"2026-01-30T05:00:00Z","level":"INFO","msg":"` + strings.Repeat("x", 200) + `","src_ip":"1.1.1.1"}`
	input := `{"ts":"2026-01-30T05:00:00Z","level":"INFO","msg":"ok","src_ip":"1.1.1.1"}` + "\n" + long + "\n"

	s := New(strings.NewReader(input), "long", Options{MaxLineSize: 128, Log: quietLogger()})
	events := collect(t, s)

	assert.Len(t, events, 1)
	require.Error(t, s.Err())
	assert.True(t, errors.Is(s.Err(), bufio.ErrTooLong))
	assert.Contains(t, s.Err().Error(), "after line 1")
}

func TestReadErrorPropagates(t *testing.T) {
	r := io.MultiReader(strings.NewReader(sample), errReader{})
	s := New(r, "broken", Options{Log: quietLogger()})

	collect(t, s)
	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "boom")
}

func TestMalformedLinesAreLoggedAtDebug(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	s := New(strings.NewReader(sample), "sample", Options{Log: logger})
	collect(t, s)

	var skipped *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "skipping malformed line" {
			skipped = e
		}
	}
	require.NotNil(t, skipped)
	assert.Equal(t, logrus.DebugLevel, skipped.Level)
	assert.Equal(t, 3, skipped.Data["line"])
	assert.Equal(t, "syntax", skipped.Data["kind"])
	assert.Equal(t, "sample", skipped.Data["source"])
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }
