package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/thywilljoshua/doc-parser/internal/history"
	"github.com/thywilljoshua/doc-parser/internal/parse"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	okStyle = cellStyle.
		Foreground(lipgloss.Color("#00FF00"))

	failedStyle = cellStyle.
			Foreground(lipgloss.Color("#FF0000"))

	skippedStyle = cellStyle.
			Foreground(lipgloss.Color("#FFAA00"))

	totalsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

const statusCol = 6

func statusStyle(s string) lipgloss.Style {
	switch parse.Status(s) {
	case parse.StatusOK:
		return okStyle
	case parse.StatusFailed:
		return failedStyle
	default:
		return skippedStyle
	}
}

func renderRows(rows []parse.ReportRow) string {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			r.Document,
			string(r.Type),
			strconv.Itoa(r.TOC),
			strconv.Itoa(r.Images),
			strconv.Itoa(r.Tables),
			strconv.Itoa(r.Paragraphs),
			string(r.Status),
			r.Error,
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("DOCUMENT", "TYPE", "TOC", "IMAGES", "TABLES", "PARAGRAPHS", "STATUS", "ERROR").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == statusCol:
				return statusStyle(data[row][col])
			default:
				return cellStyle
			}
		})
	return t.String()
}

func renderSummary(res *parse.Result) string {
	totals := fmt.Sprintf("%d documents: %d parsed, %d failed, %d unsupported",
		res.Documents, res.Parsed, res.Failed, res.Unsupported)
	return renderRows(res.Rows) + "\n" + totalsStyle.Render(totals)
}

func renderRuns(runs []history.RunSummary) string {
	data := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "running"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		data = append(data, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			finished,
			r.InputDir,
			strconv.Itoa(r.Documents),
			strconv.Itoa(r.Failed),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("RUN", "STARTED", "DURATION", "INPUT", "DOCUMENTS", "FAILED").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}
