package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Spinner frames for the active file
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var (
	primaryColor = lipgloss.Color("#D35400")
	mutedColor   = lipgloss.Color("#888888")
	okColor      = lipgloss.Color("#00AA00")
	busyColor    = lipgloss.Color("#FFA500")
	emptyColor   = lipgloss.Color("#444444")
)

// renderProcessingView renders the main processing view
func renderProcessingView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderFileQueue(m))
	b.WriteString("\n")
	b.WriteString(renderOverallProgress(m))

	return b.String()
}

func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(primaryColor).
		Render("mixdesk 🎚 - Track Analysis")

	subtitle := lipgloss.NewStyle().
		Foreground(mutedColor).
		Italic(true).
		Render(fmt.Sprintf("Analysing %d file(s), q to quit", len(m.Files)))

	return title + "\n" + subtitle
}

func renderFileQueue(m Model) string {
	var b strings.Builder
	for _, file := range m.Files {
		b.WriteString(renderFileEntry(m, file))
		b.WriteString("\n")
	}
	return b.String()
}

func renderFileEntry(m Model, file FileProgress) string {
	fileName := filepath.Base(file.InputPath)

	switch file.Status {
	case StatusComplete:
		icon := lipgloss.NewStyle().Foreground(okColor).Render("✓")
		return fmt.Sprintf(" %s %s\n   %s", icon, fileName, summarise(file.Result))

	case StatusAnalysing:
		icon := lipgloss.NewStyle().Foreground(busyColor).Render(spinnerFrames[m.spinnerIndex])
		return fmt.Sprintf(" %s %s\n%s", icon, fileName, renderFileDetails(file))

	case StatusError:
		icon := lipgloss.NewStyle().Foreground(primaryColor).Render("✗")
		return fmt.Sprintf(" %s %s\n   Error: %v", icon, fileName, file.Error)

	default:
		icon := lipgloss.NewStyle().Foreground(mutedColor).Render("○")
		return fmt.Sprintf(" %s %s\n   Queued...", icon, fileName)
	}
}

// summarise is the one-line result of a finished file.
func summarise(r FileResult) string {
	s := fmt.Sprintf("%.1f LUFS | %.1f dBTP | centroid %.0f Hz | width %.2f | %d suggestion(s)",
		r.Integrated, r.TruePeak, r.CentroidHz, r.StereoWidth, r.Suggestions)
	if r.Degraded {
		s += " | approximate loudness"
	}
	return s
}

// renderFileDetails shows one bar per stage for the active file
func renderFileDetails(file FileProgress) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(primaryColor).
		Padding(0, 1).
		Width(64)

	var content strings.Builder
	for _, stage := range Stages {
		fmt.Fprintf(&content, "%-9s %s\n", stage, renderProgressBar(file.Stages[stage], 40))
	}
	fmt.Fprintf(&content, "⏱  Elapsed: %s", formatElapsed(file.Elapsed))

	return box.Render(content.String())
}

func renderProgressBar(progress float64, width int) string {
	progress = max(0, min(progress, 1))
	filled := int(progress * float64(width))
	empty := width - filled

	filledStyle := lipgloss.NewStyle().Foreground(primaryColor)
	emptyStyle := lipgloss.NewStyle().Foreground(emptyColor)
	bar := filledStyle.Render(strings.Repeat("━", filled)) +
		emptyStyle.Render(strings.Repeat("━", empty))

	return fmt.Sprintf("%s %3d%%", bar, int(progress*100))
}

func renderOverallProgress(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Padding(0, 1).
		Width(64)

	var content string
	if m.valid(m.CurrentIndex) {
		content = fmt.Sprintf("File %d of %d (%d complete, %d failed)",
			m.CurrentIndex+1, len(m.Files), m.CompletedFiles, m.FailedFiles)
	} else {
		content = fmt.Sprintf("Overall: %d/%d complete", m.CompletedFiles, len(m.Files))
	}
	return box.Render(content)
}

func renderCompletionSummary(m Model) string {
	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(okColor).
		Render("✨ Analysis Complete")
	b.WriteString(header)
	b.WriteString("\n\n")

	for _, file := range m.Files {
		b.WriteString(renderFileEntry(m, file))
		if file.Status == StatusComplete && file.Result.ReportPath != "" {
			b.WriteString("\n   Report: " + file.Result.ReportPath)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", 64))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d analysed, %d failed in %s\n",
		m.CompletedFiles, m.FailedFiles, formatElapsed(time.Since(m.StartTime)))

	return b.String()
}

// formatElapsed formats elapsed time as MM:SS or HH:MM:SS
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
