package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorHeader = lipgloss.Color("#2CD7C7")
	colorBar    = lipgloss.Color("#20B9B4")
	colorBorder = lipgloss.Color("#16858E")
	colorMuted  = lipgloss.Color("#2C4A54")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorHeader).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	barStyle    = lipgloss.NewStyle().Foreground(colorBar)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
)

// Table renders rows as a bordered table. Relative is each score divided by the lowest score.
func Table(rows []Row) string {
	fastest := lowest(rows)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("Benchmark", "Samples", "Score", "Error (99.9%)", "Unit", "Relative").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0 || col == 4:
				return cellStyle
			}
			return numberStyle
		})

	for _, r := range rows {
		t.Row(
			r.Benchmark,
			fmt.Sprint(r.Samples),
			fmt.Sprintf("%.3f", r.Score),
			fmt.Sprintf("± %.3f", r.ScoreError),
			r.Unit,
			relative(r.Score, fastest),
		)
	}
	return t.Render()
}

// Chart renders one horizontal bar per row, scaled so the highest score fills width cells.
// Rows whose score is NaN or infinite get an empty bar and do not affect the scale.
func Chart(rows []Row, width int) string {
	if len(rows) == 0 {
		return ""
	}
	width = max(width, 1)

	var label int
	top := 0.0
	for _, r := range rows {
		label = max(label, lipgloss.Width(r.Benchmark))
		if finite(r.Score) {
			top = max(top, r.Score)
		}
	}

	var b strings.Builder
	for _, r := range rows {
		n := 0
		if top > 0 && finite(r.Score) && r.Score > 0 {
			n = max(int(math.Round(r.Score/top*float64(width))), 1)
		}
		fmt.Fprintf(
			&b,
			"%s %s%s %s\n",
			lipgloss.NewStyle().Width(label).Render(r.Benchmark),
			barStyle.Render(strings.Repeat("█", n)),
			strings.Repeat(" ", width-n),
			mutedStyle.Render(fmt.Sprintf("%.3f %s", r.Score, r.Unit)),
		)
	}
	return b.String()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func lowest(rows []Row) float64 {
	low := math.Inf(1)
	for _, r := range rows {
		if finite(r.Score) && r.Score > 0 {
			low = min(low, r.Score)
		}
	}
	return low
}

func relative(score, fastest float64) string {
	if math.IsInf(fastest, 1) || !finite(score) || score <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fx", score/fastest)
}
