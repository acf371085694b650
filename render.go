package main

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"meetctl/meeting"
)

var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	onlineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	controlOnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	controlOff     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	sectionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	speakerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	textStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	summaryTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	bannerStyles = map[meeting.Kind]lipgloss.Style{
		meeting.KindInfo:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		meeting.KindError:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		meeting.KindRecording: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

const (
	minWrap = 10
	// rounded border plus the title and the blank line under it
	summaryChrome = 4
)

// renderView draws one frame from a snapshot. It depends on nothing else, so
// the same snapshot always renders the same frame. With a known height the
// frame never exceeds it: the transcript gets what is left after the status,
// controls and help, and a long summary is cut to leave it at least one line.
func renderView(snap meeting.Snapshot, width, height int, notice string) string {
	if width < minWrap*2 {
		width = minWrap * 2
	}

	var top []string
	conn := offlineStyle.Render("○ offline")
	if snap.Connected {
		conn = onlineStyle.Render("● connected")
	}
	top = append(top, titleStyle.Render("meetctl")+"  "+conn)
	top = append(top, renderBanner(snap.Status, width))
	top = append(top, "")
	top = append(top, renderControl("s", "Start meeting", snap.StartEnabled())+"   "+renderControl("e", "End meeting", snap.EndEnabled()))
	top = append(top, "")
	top = append(top, sectionStyle.Render(fmt.Sprintf("Transcript (%d)", snap.Received)))

	foot := []string{""}
	if notice != "" {
		foot = append(foot, noticeStyle.Render(notice))
	}
	foot = append(foot, renderHelp(snap))

	fixed := lipgloss.Height(strings.Join(top, "\n")) + lipgloss.Height(strings.Join(foot, "\n"))

	var panel []string
	if snap.SummaryVisible {
		limit := 0
		if height > 0 {
			// one blank line above the panel, one transcript line below the top
			limit = max(height-fixed-2, summaryChrome+1)
		}
		panel = []string{"", renderSummary(snap.Summary, width, limit)}
	}

	budget := math.MaxInt
	if height > 0 {
		budget = height - fixed
		if len(panel) > 0 {
			budget -= lipgloss.Height(strings.Join(panel, "\n"))
		}
	}

	lines := append(top, renderTranscript(snap, width, budget)...)
	lines = append(lines, panel...)
	lines = append(lines, foot...)
	return strings.Join(lines, "\n")
}

func renderBanner(st meeting.Status, width int) string {
	style, ok := bannerStyles[st.Kind]
	if !ok {
		style = bannerStyles[meeting.KindInfo]
	}
	msg := inert(st.Message)
	if st.Kind == meeting.KindRecording {
		msg = "● " + msg
	}
	return style.Render(strings.Join(wrapText(msg, width), "\n"))
}

func renderControl(key, label string, enabled bool) string {
	if enabled {
		return controlOnStyle.Render("[" + key + "] " + label)
	}
	return controlOff.Render("[" + key + "] " + label)
}

// renderTranscript returns the newest entries that fit in budget lines,
// oldest first. Entries that do not fit are counted in a header line. An
// entry taller than the whole budget is cut.
func renderTranscript(snap meeting.Snapshot, width, budget int) []string {
	if len(snap.Entries) == 0 {
		return []string{mutedStyle.Render("No transcript yet")}
	}
	if budget < 1 {
		budget = 1
	}

	var blocks [][]string
	used := 0
	for i := len(snap.Entries) - 1; i >= 0; i-- {
		block := renderEntry(snap.Entries[i], width)
		if used+len(block) > budget {
			if len(blocks) == 0 {
				blocks = append(blocks, block[:budget])
				used = budget
			}
			break
		}
		blocks = append(blocks, block)
		used += len(block)
	}

	hidden := snap.Received - len(blocks)
	// The header takes a line; drop the oldest shown entries until it fits.
	for hidden > 0 && used+1 > budget && len(blocks) > 1 {
		used -= len(blocks[len(blocks)-1])
		blocks = blocks[:len(blocks)-1]
		hidden++
	}

	var out []string
	if hidden > 0 && used+1 <= budget {
		out = append(out, mutedStyle.Render(fmt.Sprintf("… %d earlier", hidden)))
	}
	for j := len(blocks) - 1; j >= 0; j-- {
		out = append(out, blocks[j]...)
	}
	return out
}

// renderEntry renders "[timestamp] speaker: text" with continuation lines
// indented under the text.
func renderEntry(e meeting.Entry, width int) []string {
	ts := "[" + inert(e.Timestamp) + "]"
	speaker := inert(e.Speaker) + ":"
	indent := lipgloss.Width(ts) + lipgloss.Width(speaker) + 2

	wrap := width - indent
	if wrap < minWrap {
		wrap = minWrap
	}
	parts := wrapText(inert(e.Text), wrap)

	lines := make([]string, 0, len(parts))
	lines = append(lines, timeStyle.Render(ts)+" "+speakerStyle.Render(speaker)+" "+textStyle.Render(parts[0]))
	pad := strings.Repeat(" ", indent)
	for _, p := range parts[1:] {
		lines = append(lines, pad+textStyle.Render(p))
	}
	return lines
}

// renderSummary draws the summary panel. A positive limit caps its height;
// cut lines are replaced by a hint pointing at the copy key.
func renderSummary(summary string, width, limit int) string {
	inner := width - 4
	if inner < minWrap {
		inner = minWrap
	}

	var body []string
	if summary == "" {
		body = []string{mutedStyle.Render("(empty)")}
	} else {
		for _, para := range inertLines(summary) {
			body = append(body, wrapText(para, inner)...)
		}
	}

	if limit > 0 {
		keep := max(limit-summaryChrome, 1) - 1
		if len(body) > keep+1 {
			hidden := len(body) - keep
			body = append(body[:keep:keep], mutedStyle.Render(fmt.Sprintf("… %d more lines (c to copy)", hidden)))
		}
	}

	content := summaryTitleStyle.Render("Meeting Summary") + "\n\n" + strings.Join(body, "\n")
	return summaryStyle.Render(content)
}

func renderHelp(snap meeting.Snapshot) string {
	parts := []string{
		helpKeyStyle.Render("s") + helpStyle.Render(" start"),
		helpKeyStyle.Render("e") + helpStyle.Render(" end"),
	}
	if snap.SummaryVisible && snap.Summary != "" {
		parts = append(parts, helpKeyStyle.Render("c")+helpStyle.Render(" copy summary"))
	}
	parts = append(parts, helpKeyStyle.Render("q")+helpStyle.Render(" quit"))
	return strings.Join(parts, helpStyle.Render(" · ")) + helpStyle.Render("   meetctl "+version)
}

// renderPlain is the uncolored view used by the headless mode.
func renderPlain(snap meeting.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "state: %s\n", snap.State)
	fmt.Fprintf(&b, "status: %s (%s)\n", inert(snap.Status.Message), snap.Status.Kind)
	fmt.Fprintf(&b, "connected: %t\n", snap.Connected)
	fmt.Fprintf(&b, "controls: start=%s end=%s\n", onOff(snap.StartEnabled()), onOff(snap.EndEnabled()))
	fmt.Fprintf(&b, "transcript: %d\n", snap.Received)
	for _, e := range snap.Entries {
		b.WriteString("  " + inert(e.String()) + "\n")
	}
	if snap.SummaryVisible {
		b.WriteString("summary:\n")
		for _, line := range inertLines(snap.Summary) {
			b.WriteString("  " + line + "\n")
		}
	}
	return b.String()
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// inert removes terminal escape sequences from server text and folds the
// remaining control characters, line breaks included, into spaces.
func inert(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, ansi.Strip(s))
}

// inertLines is inert for multi-line text. Line breaks survive as separate
// lines.
func inertLines(s string) []string {
	s = strings.ReplaceAll(ansi.Strip(s), "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = inert(line)
	}
	return lines
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	runes := []rune(text)
	var lines []string
	for len(runes) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = []rune(strings.TrimLeft(string(runes[splitAt:]), " "))
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
