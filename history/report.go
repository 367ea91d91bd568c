package history

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/signalworks/ccdumper/domain"
)

// renderReport builds the markdown history table for one term. The
// indicator column set follows the newest row; older rows written by a
// previous build may miss columns and render as N/A.
func renderReport(term Term, symbol string, rows []domain.Snapshot) string {
	keys := make([]string, 0, len(rows[0].Indicators))
	for k := range rows[0].Indicators {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s analysis history for %s\n\n", term.Role, symbol)

	header := append([]string{}, keys...)
	header = append(header, "Trend", "Current Price", "Close Price", "Timestamp")
	fmt.Fprintf(&b, "| %s |\n", strings.Join(header, " | "))

	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	fmt.Fprintf(&b, "| %s |\n", strings.Join(sep, " | "))

	for _, row := range rows {
		cells := make([]string, 0, len(header))
		for _, k := range keys {
			if v, ok := row.Indicators[k]; ok {
				cells = append(cells, fmt.Sprintf("%.4f", v))
			} else {
				cells = append(cells, "N/A")
			}
		}
		cells = append(cells,
			row.Trend,
			fmt.Sprintf("%.4f", row.CurrentPrice),
			fmt.Sprintf("%.4f", row.ClosePrice),
			row.Date.UTC().Format(time.RFC3339),
		)
		fmt.Fprintf(&b, "| %s |\n", strings.Join(cells, " | "))
	}

	fmt.Fprintf(&b, "\n## Data Sources\n")
	fmt.Fprintf(&b, "- **Lookback**: %s\n", rows[0].LookbackPeriod)
	fmt.Fprintf(&b, "- **Snapshot interval**: %s\n", term.TTL)

	return b.String()
}
