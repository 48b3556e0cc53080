package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"lautcoach/internal/models"
	"lautcoach/internal/scoring"
	"lautcoach/internal/service"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAAD14")).Bold(true)
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	scoreStyle  = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true)
)

// scoreColor matches the mastery bands: mastered at 85, weak below 60.
func scoreColor(score float64) lipgloss.Style {
	switch {
	case score >= 85:
		return okStyle
	case score >= 60:
		return warnStyle
	default:
		return badStyle
	}
}

func renderOutcome(w io.Writer, o scoring.Outcome) {
	r := o.Result
	box := scoreStyle.BorderForeground(scoreColor(r.Score).GetForeground())
	fmt.Fprintln(w, box.Render(fmt.Sprintf("%.1f / 100", r.Score)))
	fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("path:  "), o.Path)
	fmt.Fprintf(w, "%s /%s/\n", mutedStyle.Render("target:"), r.TargetIPA)
	fmt.Fprintf(w, "%s /%s/\n", mutedStyle.Render("heard: "), r.UserIPA)
	if len(r.Errors) == 0 {
		return
	}
	fmt.Fprintln(w, headerStyle.Render("errors"))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %2d  %s → %s\n", e.Position, e.Target, badStyle.Render(e.Produced))
	}
}

func renderModules(w io.Writer, modules []models.SoundModule) {
	if len(modules) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no modules, run `lautctl seed`"))
		return
	}
	idWidth := len("sound_id")
	for _, m := range modules {
		idWidth = max(idWidth, len(m.SoundID))
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-*s  %-12s  %-6s  %s", idWidth, "sound_id", "difficulty", "ipa", "exercises")))
	for _, m := range modules {
		ipa := "/" + m.PhonemeIPA + "/"
		fmt.Fprintf(w, "%-*s  %-12s  %s  %d\n", idWidth, m.SoundID, m.DifficultyLevel, pad(ipa, 6), len(m.Exercises))
	}
}

// pad right-pads by rune count, since IPA symbols are multi-byte.
func pad(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func renderImportSummary(w io.Writer, s service.ImportSummary) {
	fmt.Fprintln(w, okStyle.Render("import complete"))
	fmt.Fprintf(w, "  modules   %d\n", s.Modules)
	fmt.Fprintf(w, "  sessions  %d %s\n", s.Sessions, mutedStyle.Render(fmt.Sprintf("(%d already present)", s.SessionsSkipped)))
	fmt.Fprintf(w, "  mastery   %d\n", s.Mastery)
}
