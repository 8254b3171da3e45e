package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/atikulmunna/logkit/internal/aggregator"
	"github.com/atikulmunna/logkit/internal/model"
	"github.com/atikulmunna/logkit/internal/stream"
)

// AmbiguousPathError reports a glob that matched more than one file.
type AmbiguousPathError struct {
	Pattern string
	Matches []string
}

func (e *AmbiguousPathError) Error() string {
	return fmt.Sprintf("%q matches %d files (%s, ...); exactly one log file is required",
		e.Pattern, len(e.Matches), e.Matches[0])
}

// Options describe one run.
type Options struct {
	Path        string
	Filter      model.Filter
	Strict      bool
	TopN        int // 0 disables the top source IP ranking
	MaxLineSize datasize.ByteSize
	Log         logrus.FieldLogger
}

// Report is the outcome of a successful run.
type Report struct {
	Path         string // resolved input file
	Events       int    // events that reached the aggregations
	Counts       map[string]int
	Top          []aggregator.IPCount
	TopRequested bool
	Stats        stream.Stats
}

// Run reads the input once and feeds every surviving event to all
// aggregations, so counts and top IPs always describe the same events.
func Run(opts Options) (*Report, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	path, err := ResolvePath(opts.Path)
	if err != nil {
		return nil, err
	}

	s, err := stream.Open(path, stream.Options{
		Filter:      opts.Filter,
		Strict:      opts.Strict,
		MaxLineSize: opts.MaxLineSize,
		Log:         log,
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	tally := aggregator.New()
	tally.Consume(s.All())
	if err := s.Err(); err != nil {
		return nil, err
	}

	st := s.Stats()
	log.WithFields(logrus.Fields{
		"path":      path,
		"lines":     st.Lines,
		"malformed": st.Malformed,
		"filtered":  st.Filtered,
		"events":    tally.Total(),
	}).Info("scan complete")

	return &Report{
		Path:         path,
		Events:       tally.Total(),
		Counts:       tally.LevelCounts(),
		Top:          tally.Top(opts.TopN),
		TopRequested: opts.TopN > 0,
		Stats:        st,
	}, nil
}

// ResolvePath returns path unchanged when it names an existing entry.
// Otherwise path is treated as a doublestar glob that must match exactly one
// file.
func ResolvePath(path string) (string, error) {
	if _, err := os.Stat(path); err == nil || !hasMeta(path) {
		return path, nil
	}

	matches, err := doublestar.FilepathGlob(path, doublestar.WithFilesOnly())
	if err != nil {
		return "", &stream.FileAccessError{Path: path, Err: errors.Wrap(err, "bad glob pattern")}
	}
	switch len(matches) {
	case 0:
		return "", &stream.FileAccessError{Path: path, Err: os.ErrNotExist}
	case 1:
		return filepath.Clean(matches[0]), nil
	}
	return "", &AmbiguousPathError{Pattern: path, Matches: matches}
}

func hasMeta(path string) bool {
	for _, r := range path {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
