// Package report renders run reports and target listings as terminal tables.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.trai.ch/crossbox/internal/core/domain"
)

// Run writes the end-of-run table and summary line for r.
func Run(w io.Writer, r *domain.RunReport) error {
	entries := r.Entries()

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Target.String(),
			string(e.Criticality),
			string(e.Outcome),
			string(e.Source),
			string(e.Downstream),
			formatDuration(e.Duration),
			detail(e),
		})
	}

	headers := []string{"TARGET", "CRITICALITY", "OUTCOME", "SOURCE", "DOWNSTREAM", "TIME", "DETAIL"}
	title := titleStyle.Render("crossbox run " + shortID(r.RunID))
	_, err := fmt.Fprintf(w, "%s\n%s\n%s\n", title, render(headers, rows, 2, 4), summary(entries, len(r.Failures())))
	return err
}

// Targets writes the status of every declared target.
func Targets(w io.Writer, statuses []domain.TargetStatus) error {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		note := ""
		if s.Err != nil {
			note = firstLine(s.Err.Error())
		}
		rows = append(rows, []string{
			s.Target.String(),
			string(s.Criticality),
			string(s.Kind),
			s.Digest,
			string(s.Cache),
			note,
		})
	}

	headers := []string{"TARGET", "CRITICALITY", "RECIPE", "DIGEST", "CACHE", "ERROR"}
	_, err := fmt.Fprintln(w, render(headers, rows, 4))
	return err
}

// CacheEntries writes the metadata of every cached archive.
func CacheEntries(w io.Writer, entries []domain.CacheEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		created := ""
		if !e.CreatedAt.IsZero() {
			created = e.CreatedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			e.Target.String(),
			e.Image,
			e.RecipeDigest,
			e.Engine,
			fmt.Sprint(len(e.Layers)),
			formatSize(e.Size),
			created,
		})
	}

	headers := []string{"TARGET", "IMAGE", "DIGEST", "ENGINE", "LAYERS", "SIZE", "CREATED"}
	_, err := fmt.Fprintln(w, render(headers, rows))
	return err
}

// render builds a table; the columns in statusCols are coloured by value.
func render(headers []string, rows [][]string, statusCols ...int) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			for _, c := range statusCols {
				if c == col && row >= 0 && row < len(rows) {
					return statusStyle(rows[row][col]).Padding(0, 1)
				}
			}
			return cellStyle
		})
	return t.Render()
}

// summary renders the totals line; counted is the number of failures that fail the run.
func summary(entries []domain.Entry, counted int) string {
	var cached, built, failed int
	for _, e := range entries {
		switch e.Outcome {
		case domain.OutcomeCached:
			cached++
		case domain.OutcomeBuilt:
			built++
		case domain.OutcomeFailed:
			failed++
		}
	}
	tolerated := max(failed-counted, 0)

	line := fmt.Sprintf("%d targets: %d cached, %d built, %d failed", len(entries), cached, built, failed)
	if tolerated > 0 {
		line += fmt.Sprintf(" (%d best-effort)", tolerated)
	}
	if failed > tolerated {
		return failStyle.Render(line)
	}
	return okStyle.Render(line)
}

func detail(e domain.Entry) string {
	switch {
	case e.Err != nil:
		return string(e.Stage) + ": " + firstLine(e.Err.Error())
	case len(e.Warnings) > 0:
		return "warning: " + firstLine(e.Warnings[0])
	case e.Outcome == domain.OutcomeBuilt && e.Reason != "":
		return e.Reason
	case e.Outcome == domain.OutcomeCached:
		return e.Image.String()
	default:
		return ""
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func formatSize(n int64) string {
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
