package output

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-logfmt/logfmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/muesli/termenv"

	"github.com/atikulmunna/logkit/internal/aggregator"
)

// Filters echoes the filter flags as the user supplied them.
// Empty strings are rendered as null in JSON.
type Filters struct {
	SourceIP string
	Contains string
	Since    string
	Until    string
	Strict   bool
}

// Result is everything a renderer needs for one run.
type Result struct {
	Path         string
	Filters      Filters
	Counts       map[string]int
	Top          []aggregator.IPCount
	TopRequested bool
}

// Levels returns the levels of r.Counts in ascending order.
func (r Result) Levels() []string {
	return slices.Sorted(maps.Keys(r.Counts))
}

// Renderer writes a Result to an output stream.
type Renderer interface {
	Render(res Result) error
}

// New returns the renderer for format: "text", "json" or "logfmt".
func New(format string, w io.Writer) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return NewTextRenderer(w), nil
	case "json":
		return NewJSONRenderer(w), nil
	case "logfmt":
		return NewLogfmtRenderer(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q (want text, json or logfmt)", format)
}

// ---------------------------------------------------------------------------
// Text Renderer (aligned columns, colorized on terminals)
// ---------------------------------------------------------------------------

const (
	noEventsMessage = "No events matched."
	topHeader       = "Top source IPs:"
	columnGap       = "  "
)

// TextRenderer prints level counts as aligned columns. Level labels are
// colored only when w is a terminal; other sinks receive plain bytes.
type TextRenderer struct {
	w     io.Writer
	plain bool

	styleInfo   lipgloss.Style
	styleDebug  lipgloss.Style
	styleWarn   lipgloss.Style
	styleError  lipgloss.Style
	styleFatal  lipgloss.Style
	styleHeader lipgloss.Style
}

// NewTextRenderer returns a Renderer that writes aligned text to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	lr := lipgloss.NewRenderer(w)
	base := lr.NewStyle().TabWidth(lipgloss.NoTabConversion)

	return &TextRenderer{
		w:           w,
		plain:       lr.ColorProfile() == termenv.Ascii,
		styleInfo:   base.Foreground(lipgloss.Color("245")),             // gray
		styleDebug:  base.Foreground(lipgloss.Color("245")).Faint(true), // dim gray
		styleWarn:   base.Foreground(lipgloss.Color("220")),             // yellow
		styleError:  base.Foreground(lipgloss.Color("196")).Bold(true),  // red bold
		styleFatal:  base.Foreground(lipgloss.Color("255")).Background(lipgloss.Color("196")).Bold(true),
		styleHeader: base.Foreground(lipgloss.Color("39")).Bold(true), // cyan
	}
}

func (r *TextRenderer) Render(res Result) error {
	var b strings.Builder

	if len(res.Counts) == 0 {
		b.WriteString(noEventsMessage)
		b.WriteByte('\n')
		_, err := io.WriteString(r.w, b.String())
		return err
	}

	levels := res.Levels()
	width := 0
	for _, level := range levels {
		width = max(width, lipgloss.Width(level))
	}

	for _, level := range levels {
		padded := level + strings.Repeat(" ", width-lipgloss.Width(level))
		fmt.Fprintf(&b, "%s%s%d\n", r.levelTag(level, padded), columnGap, res.Counts[level])
	}

	if res.TopRequested {
		b.WriteByte('\n')
		b.WriteString(r.style(r.styleHeader, topHeader))
		b.WriteByte('\n')
		for _, c := range res.Top {
			fmt.Fprintf(&b, "%s%s%d\n", c.IP, columnGap, c.Count)
		}
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *TextRenderer) levelTag(level, padded string) string {
	switch strings.ToUpper(level) {
	case "DEBUG", "TRACE":
		return r.style(r.styleDebug, padded)
	case "WARN", "WARNING":
		return r.style(r.styleWarn, padded)
	case "ERROR", "ERR":
		return r.style(r.styleError, padded)
	case "FATAL", "CRITICAL", "CRIT":
		return r.style(r.styleFatal, padded)
	default:
		return r.style(r.styleInfo, padded)
	}
}

func (r *TextRenderer) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonFilters mirrors Filters with nullable fields; keys are declared in
// sorted order so the document reads the same as a sorted-key dump.
type jsonFilters struct {
	Contains *string `json:"contains"`
	Since    *string `json:"since"`
	SrcIP    *string `json:"src_ip"`
	Strict   bool    `json:"strict"`
	Until    *string `json:"until"`
}

type jsonDocument struct {
	CountsByLevel map[string]int        `json:"counts_by_level"`
	Filters       jsonFilters           `json:"filters"`
	Path          string                `json:"path"`
	TopSrcIPs     *[]aggregator.IPCount `json:"top_src_ips,omitempty"`
}

// JSONRenderer prints the result as one indented JSON document.
type JSONRenderer struct {
	w io.Writer
}

// NewJSONRenderer returns a Renderer that writes JSON to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{w: w}
}

func (r *JSONRenderer) Render(res Result) error {
	counts := res.Counts
	if counts == nil {
		counts = map[string]int{}
	}

	doc := jsonDocument{
		CountsByLevel: counts,
		Filters: jsonFilters{
			Contains: nullable(res.Filters.Contains),
			Since:    nullable(res.Filters.Since),
			SrcIP:    nullable(res.Filters.SourceIP),
			Strict:   res.Filters.Strict,
			Until:    nullable(res.Filters.Until),
		},
		Path: res.Path,
	}
	if res.TopRequested {
		top := res.Top
		if top == nil {
			top = []aggregator.IPCount{}
		}
		doc.TopSrcIPs = &top
	}

	raw, err := jsonAPI.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	_, err = r.w.Write(raw)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ---------------------------------------------------------------------------
// Logfmt Renderer (one record per row)
// ---------------------------------------------------------------------------

// LogfmtRenderer prints one logfmt record per level and per ranked IP.
type LogfmtRenderer struct {
	w io.Writer
}

// NewLogfmtRenderer returns a Renderer that writes logfmt records to w.
func NewLogfmtRenderer(w io.Writer) *LogfmtRenderer {
	return &LogfmtRenderer{w: w}
}

func (r *LogfmtRenderer) Render(res Result) error {
	enc := logfmt.NewEncoder(r.w)

	for _, level := range res.Levels() {
		if err := enc.EncodeKeyvals("level", level, "count", res.Counts[level]); err != nil {
			return err
		}
		if err := enc.EndRecord(); err != nil {
			return err
		}
	}

	if !res.TopRequested {
		return nil
	}
	for i, c := range res.Top {
		if err := enc.EncodeKeyvals("rank", i+1, "src_ip", c.IP, "count", c.Count); err != nil {
			return err
		}
		if err := enc.EndRecord(); err != nil {
			return err
		}
	}
	return nil
}
