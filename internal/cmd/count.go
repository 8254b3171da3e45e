package cmd

import (
	"io"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atikulmunna/logkit/internal/model"
	"github.com/atikulmunna/logkit/internal/output"
	"github.com/atikulmunna/logkit/internal/parser"
	"github.com/atikulmunna/logkit/internal/pipeline"
)

// defaultCSVTop is the ranking size used when only --top-src-csv is given.
const defaultCSVTop = 5

// countOptions is the validated form of the command line.
type countOptions struct {
	filter      model.Filter
	echo        output.Filters
	strict      bool
	topN        int
	topCSV      string
	format      string
	out         string
	quiet       bool
	maxLineSize datasize.ByteSize
}

func runCount(cmd *cobra.Command, v *viper.Viper, log *logrus.Logger, path string) error {
	// --- Validate everything before touching the input ---
	o, err := readOptions(v)
	if err != nil {
		return err
	}

	// --- Scan ---
	rep, err := pipeline.Run(pipeline.Options{
		Path:        path,
		Filter:      o.filter,
		Strict:      o.strict,
		TopN:        o.topN,
		MaxLineSize: o.maxLineSize,
		Log:         log,
	})
	if err != nil {
		return err
	}

	res := output.Result{
		Path:         path,
		Filters:      o.echo,
		Counts:       rep.Counts,
		Top:          rep.Top,
		TopRequested: rep.TopRequested,
	}

	// --- Write sinks ---
	if o.topCSV != "" {
		if err := output.WriteFile(o.topCSV, func(w io.Writer) error {
			return output.WriteCSV(w, rep.Top)
		}); err != nil {
			return err
		}
		log.WithField("file", o.topCSV).Info("wrote top source IPs")
	}

	render := func(w io.Writer) error {
		r, err := output.New(o.format, w)
		if err != nil {
			return err
		}
		return r.Render(res)
	}

	if o.out != "" {
		if err := output.WriteFile(o.out, render); err != nil {
			return err
		}
		log.WithField("file", o.out).Info("wrote report")
		return nil
	}
	if o.quiet {
		return nil
	}
	return errors.Wrap(render(cmd.OutOrStdout()), "writing output")
}

// readOptions turns flag, environment and config values into countOptions.
func readOptions(v *viper.Viper) (countOptions, error) {
	o := countOptions{
		strict: v.GetBool(keyStrict),
		topCSV: v.GetString(keyTopSrcCSV),
		out:    v.GetString(keyOut),
		quiet:  v.GetBool(keyQuiet),
	}

	o.filter.SourceIP = v.GetString(keySrcIP)
	o.filter.Contains = v.GetString(keyContains)

	var err error
	if o.filter.Since, err = parseBound(v, keySince); err != nil {
		return o, err
	}
	if o.filter.Until, err = parseBound(v, keyUntil); err != nil {
		return o, err
	}
	if o.filter.Since != nil && o.filter.Until != nil && o.filter.Since.After(*o.filter.Until) {
		return o, &ArgumentError{Flag: keySince, Err: errors.Errorf("%s is after --until %s",
			v.GetString(keySince), v.GetString(keyUntil))}
	}

	o.echo = output.Filters{
		SourceIP: o.filter.SourceIP,
		Contains: o.filter.Contains,
		Since:    v.GetString(keySince),
		Until:    v.GetString(keyUntil),
		Strict:   o.strict,
	}

	if o.topN, err = cast.ToIntE(v.Get(keyTopSrc)); err != nil {
		return o, &ArgumentError{Flag: keyTopSrc, Err: err}
	}
	if o.topN < 0 {
		return o, &ArgumentError{Flag: keyTopSrc, Err: errors.Errorf("must not be negative, got %d", o.topN)}
	}
	if o.topCSV != "" && o.topN == 0 {
		o.topN = defaultCSVTop
	}

	o.format = strings.ToLower(v.GetString(keyFormat))
	if v.GetBool(keyJSON) {
		if o.format != "" && o.format != "text" && o.format != "json" {
			return o, &ArgumentError{Flag: keyJSON, Err: errors.Errorf("conflicts with --format %s", o.format)}
		}
		o.format = "json"
	}
	switch o.format {
	case "", "text", "json", "logfmt":
	default:
		return o, &ArgumentError{Flag: keyFormat, Err: errors.Errorf("unknown format %q (want text, json or logfmt)", o.format)}
	}

	if err := o.maxLineSize.UnmarshalText([]byte(v.GetString(keyMaxLineSize))); err != nil {
		return o, &ArgumentError{Flag: keyMaxLineSize, Err: err}
	}
	if o.maxLineSize == 0 {
		return o, &ArgumentError{Flag: keyMaxLineSize, Err: errors.New("must be greater than zero")}
	}

	return o, nil
}

// parseBound parses an optional --since/--until value; nil means unset.
func parseBound(v *viper.Viper, key string) (*time.Time, error) {
	raw := v.GetString(key)
	if raw == "" {
		return nil, nil
	}
	ts, err := parser.ParseTimestamp(raw)
	if err != nil {
		return nil, &ArgumentError{Flag: key, Err: err}
	}
	return &ts, nil
}
