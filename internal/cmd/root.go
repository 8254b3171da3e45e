package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atikulmunna/logkit/internal/stream"
)

// Flag and config keys. Config files and LOGKIT_* environment variables use
// the same names (with '-' mapped to '_' for the environment).
const (
	keyConfig      = "config"
	keySrcIP       = "src-ip"
	keyContains    = "contains"
	keySince       = "since"
	keyUntil       = "until"
	keyTopSrc      = "top-src"
	keyTopSrcCSV   = "top-src-csv"
	keyJSON        = "json"
	keyFormat      = "format"
	keyOut         = "out"
	keyQuiet       = "quiet"
	keyStrict      = "strict"
	keyMaxLineSize = "max-line-size"
	keyLogLevel    = "log-level"
)

// newRootCmd builds the logkit command. Each command gets its own viper
// instance so repeated executions never share configuration state.
func newRootCmd(log *logrus.Logger) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "logkit [flags] <path>",
		Short: "Count log events by level in line-delimited JSON logs",
		Long: `logkit reads a line-delimited JSON log file, filters events by source IP,
message text and time range, and reports counts per level and the busiest
source IPs as text, JSON, logfmt or CSV.

Each line is a JSON object with "ts" (ISO8601), "level", "msg" and "src_ip".

Examples:
  logkit /var/log/app.jsonl
  logkit app.jsonl --contains "login failed" --top-src 5
  logkit app.jsonl --since 2026-01-30T05:00:00Z --until 2026-01-30T06:00:00Z --json
  logkit "logs/**/app-2026-01-30.jsonl" --top-src-csv top.csv --out report.txt --quiet`,
		Args:          exactlyOnePath,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd, v, log)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, v, log, args[0])
		},
	}

	f := cmd.Flags()
	f.StringP(keyConfig, "c", "", "config file (default: $HOME/.logkit.yaml or ./.logkit.yaml)")
	f.String(keySrcIP, "", "only count events from this source IP (exact match)")
	f.String(keyContains, "", "only count events whose message contains this text (case-insensitive)")
	f.String(keySince, "", "only count events at/after this ISO8601 timestamp, e.g. 2026-01-30T05:00:03Z")
	f.String(keyUntil, "", "only count events at/before this ISO8601 timestamp, e.g. 2026-01-30T05:00:04Z")
	f.IntP(keyTopSrc, "n", 0, "show the top N source IPs (0 disables)")
	f.String(keyTopSrcCSV, "", "write the top source IPs as CSV to this file (implies --top-src 5 when unset)")
	f.Bool(keyJSON, false, "output results as JSON (same as --format json)")
	f.StringP(keyFormat, "f", "text", "output format: text, json, logfmt")
	f.StringP(keyOut, "o", "", "write output to this file instead of stdout")
	f.BoolP(keyQuiet, "q", false, "do not print results to stdout")
	f.Bool(keyStrict, false, "fail on the first malformed line instead of skipping it")
	f.String(keyMaxLineSize, stream.DefaultMaxLineSize.String(), "longest accepted line, e.g. 512KB, 4MB")
	f.String(keyLogLevel, "warn", "diagnostic log level on stderr: debug, info, warn, error")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ArgumentError{Err: err}
	})

	return cmd
}

// Execute runs the root command and exits with its status.
func Execute() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	log := newLogger(stderr)

	cmd := newRootCmd(log)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "logkit: %v\n", err)
		code := exitCode(err)
		if code == exitUsage {
			fmt.Fprintln(stderr, "Run 'logkit --help' for usage.")
		}
		return code
	}
	return exitOK
}

func newLogger(w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	return log
}

func initConfig(cmd *cobra.Command, v *viper.Viper, log *logrus.Logger) error {
	cfgFile, _ := cmd.Flags().GetString(keyConfig)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".logkit")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LOGKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "binding flags")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return &ArgumentError{Flag: keyConfig, Err: err}
		}
	} else {
		log.WithField("file", v.ConfigFileUsed()).Debug("loaded config")
	}

	level, err := logrus.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return &ArgumentError{Flag: keyLogLevel, Err: err}
	}
	log.SetLevel(level)
	return nil
}

func exactlyOnePath(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return &ArgumentError{Err: fmt.Errorf("expected exactly one log file path, got %d", len(args))}
	}
	return nil
}
