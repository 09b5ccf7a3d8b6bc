package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func flushTable(tw *tabwriter.Writer) {
	_ = tw.Flush()
}

func humanDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	units := []struct {
		Dur  time.Duration
		Name string
	}{
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	}
	var parts []string
	remainder := d
	for _, unit := range units {
		if remainder >= unit.Dur {
			value := remainder / unit.Dur
			remainder -= value * unit.Dur
			parts = append(parts, fmt.Sprintf("%d%s", value, unit.Name))
			if len(parts) == 2 {
				break
			}
		}
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := time.Since(t)
	suffix := "ago"
	if diff < 0 {
		diff = -diff
		suffix = "from now"
	}
	return fmt.Sprintf("%s %s", humanDuration(diff), suffix)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
