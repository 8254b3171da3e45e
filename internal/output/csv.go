package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/atikulmunna/logkit/internal/aggregator"
)

// WriteCSV writes the ranked source IPs as "src_ip,count" rows.
func WriteCSV(w io.Writer, top []aggregator.IPCount) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"src_ip", "count"}); err != nil {
		return err
	}
	for _, c := range top {
		if err := cw.Write([]string{c.IP, strconv.Itoa(c.Count)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
