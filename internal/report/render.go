package report

import (
	"fmt"
	"strings"
)

// Render formats a digest as a Markdown report.
func Render(d *Digest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*Server activity digest - %s*\n", d.Range)
	fmt.Fprintf(&b, "_%s to %s_\n", d.From.Format("2006-01-02"), d.To.Format("2006-01-02"))

	b.WriteString("\n*Most active players*\n")
	if len(d.ActivePlayers) == 0 {
		b.WriteString("no recorded sessions\n")
	}
	for i, p := range d.ActivePlayers {
		fmt.Fprintf(&b, "%d. %s - %.1f h\n", i+1, p.EntityID, p.Hours)
	}

	b.WriteString("\n*Most popular worlds*\n")
	if len(d.PopularWorlds) == 0 {
		b.WriteString("no popular worlds\n")
	}
	for i, w := range d.PopularWorlds {
		fmt.Fprintf(&b, "%d. %s - score %.1f, peak %d players, %.1f h session\n",
			i+1, w.Name, w.Score, w.PeakPlayers, w.SessionHours)
	}

	fmt.Fprintf(&b, "\n*Peak online*: %d players\n", d.PeakOnline)

	return b.String()
}
