package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sv4u/stravatally/tally/activity"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numberStyle  = cellStyle.Align(lipgloss.Right)
	totalStyle   = numberStyle.Bold(true)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	captionStyle = lipgloss.NewStyle().Faint(true)
)

// allRidesRow is the table row holding the derived cycling total.
const allRidesRow = 4

// renderSummary writes the per-bucket totals as a table followed by a short
// footer about de-duplication.
func renderSummary(w io.Writer, s activity.Summary, snapshotPath string) {
	rows := make([][]string, 0, len(s.Buckets()))
	for _, b := range s.Buckets() {
		rows = append(rows, []string{b.Name, strconv.Itoa(b.Count), formatDistance(b.Distance)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Activity", "Count", "Distance ("+string(s.Unit)+")").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			case row == allRidesRow:
				return totalStyle
			default:
				return numberStyle
			}
		})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, captionStyle.Render(fmt.Sprintf(
		"%d activities read from %s, %d after de-duplication (%d duplicates removed)",
		s.Total, snapshotPath, s.Deduplicated, s.DuplicatesRemoved,
	)))
}

func formatDistance(d float64) string {
	return strconv.FormatFloat(d, 'f', 2, 64)
}
