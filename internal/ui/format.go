package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/link"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/pacing"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/plan"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/session"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/telemetry"
)

const maxLogLines = 1000

var arrowGlyphs = [8]string{"↑", "↗", "→", "↘", "↓", "↙", "←", "↖"}

// hand colours for the four arrows, matching the usual pace clock
var handColors = [4]string{"red", "yellow", "green", "blue"}

// arrowGlyph picks the closest of eight arrows for an angle measured
// clockwise from 12 o'clock.
func arrowGlyph(degrees float64) string {
	d := math.Mod(degrees+22.5, 360)
	if d < 0 {
		d += 360
	}
	return arrowGlyphs[int(d/45)%8]
}

// handSecond converts a hand angle back to the second it points at.
func handSecond(degrees float64) int {
	return int(degrees/6) % 60
}

func formatClock(v session.View) string {
	var b strings.Builder
	b.WriteString("\n")

	switch v.Status {
	case session.StatusIdle:
		b.WriteString("  [gray]Session not started[white]\n\n")
		b.WriteString("  Press [yellow]Enter[white] to start the first task\n")
		return b.String()
	case session.StatusFinished:
		b.WriteString("  [green]Session finished[white]\n\n")
		b.WriteString("  Press [yellow]Esc[white] to quit\n")
		return b.String()
	}

	color := "white"
	switch v.Phase {
	case pacing.PreStart:
		color = "yellow"
	case pacing.Paused:
		color = "gray"
	}
	if v.Display == "GO!" {
		color = "green"
	}
	fmt.Fprintf(&b, "        [%s::b]%s[-::-]", color, v.Display)
	if v.Paused {
		b.WriteString("  [gray](PAUSED)[white]")
	}
	b.WriteString("\n\n")

	for i, angle := range v.Angles {
		fmt.Fprintf(&b, "  [%s]%s[white] :%02d", handColors[i], arrowGlyph(angle), handSecond(angle))
		if i < len(v.Angles)-1 {
			b.WriteString("   ")
		}
	}
	b.WriteString("\n")
	return b.String()
}

func formatTask(v session.View) string {
	if v.Status == session.StatusIdle || v.TaskNumber == 0 {
		return fmt.Sprintf("\n  [gray]%d tasks planned[white]\n", v.TaskCount)
	}
	t := v.Task
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  [cyan]Task %d/%d[white]  [yellow]%s[white]\n", v.TaskNumber, v.TaskCount, t.Summary())
	if t.Name != "" {
		fmt.Fprintf(&b, "  %s\n", t.Name)
	}
	if t.Description != "" {
		fmt.Fprintf(&b, "  [gray]%s[white]\n", t.Description)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  [gray]Interval:[white] %s\n", limitText(t))
	fmt.Fprintf(&b, "  [gray]Pacer:[white]    %s\n", pacerText(t))
	if t.TargetHRZone != "" {
		fmt.Fprintf(&b, "  [gray]HR zone:[white]  %s\n", t.TargetHRZone)
	}
	return b.String()
}

func limitText(t plan.Task) string {
	if !t.HasTimeLimit() {
		return "none"
	}
	return plan.FormatClock(t.TimeLimit)
}

func pacerText(t plan.Task) string {
	if !t.HasPacer() {
		return "off"
	}
	return plan.FormatClock(t.PacerInterval)
}

func formatTelemetry(r telemetry.Reading) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  [red]♥[white] Heart Rate: [yellow]%s[white] bpm\n\n", r.HeartRateText())
	fmt.Fprintf(&b, "  [blue]O₂[white] SpO2:      [yellow]%s[white] %%\n\n", r.SpO2Text())
	fmt.Fprintf(&b, "  [gray]Battery:[white] %s  [gray]Voltage:[white] %s\n", r.BatteryText(), r.VoltageText())
	return b.String()
}

func formatConnection(state link.ConnectionState) string {
	switch state {
	case link.Connected:
		return " [green]●[white] Connected"
	case link.Connecting:
		return " [yellow]●[white] Connecting..."
	default:
		return " [gray]●[white] Disconnected"
	}
}

func formatControls(v session.View) string {
	switch v.Status {
	case session.StatusIdle:
		return "[yellow]Enter[white] Start  |  [yellow]Esc[white] Quit"
	case session.StatusFinished:
		return "[yellow]Esc[white] Quit"
	}
	pause := "Pause"
	if v.Paused {
		pause = "Resume"
	}
	return fmt.Sprintf("[yellow]Space[white] %s  |  [yellow]N[white] Next task  |  [yellow]F[white] Finish  |  [yellow]Esc[white] Quit", pause)
}

// logBuffer keeps the most recent log lines for the log panel.
type logBuffer struct {
	lines []string
}

func (b *logBuffer) add(line string) {
	b.lines = append(b.lines, line)
	if len(b.lines) > maxLogLines {
		b.lines = b.lines[len(b.lines)-maxLogLines:]
	}
}

func (b *logBuffer) tail(n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(b.lines) {
		n = len(b.lines)
	}
	return b.lines[len(b.lines)-n:]
}
