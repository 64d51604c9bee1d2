package report

import (
	"fmt"
	"strings"
)

// renderLineStatus formats the line status report as chat text: one site
// per block, blocked lines with their reason.
func renderLineStatus(rep LineStatusReport) string {
	var sb strings.Builder
	sb.WriteString("Line status as of " + rep.GeneratedAt.Format("15:04") + "\n")
	for _, site := range rep.Sites {
		sb.WriteString("\n")
		if site.Emoji != "" {
			sb.WriteString(site.Emoji + " ")
		}
		sb.WriteString(site.Site)
		sb.WriteString("\n")
		for _, line := range site.Lines {
			if line.Blocked {
				fmt.Fprintf(&sb, "  %s — down (%s)\n", line.Line, line.Reason)
			} else {
				fmt.Fprintf(&sb, "  %s — operating\n", line.Line)
			}
		}
	}
	return sb.String()
}

func renderSummary(s *Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Shift summary %s - %s\n",
		s.Window.Start.Format("02.01 15:04"), s.Window.End.Format("02.01 15:04"))

	if s.NoIncidents {
		sb.WriteString("No downtime incidents recorded.\n")
	} else {
		fmt.Fprintf(&sb, "Incidents: %d, total downtime: %d min\n", s.Incidents, s.TotalMinutes)
		for _, site := range s.Sites {
			fmt.Fprintf(&sb, "  %s: %d incidents, %d min\n", site.Site, site.Incidents, site.TotalMinutes)
		}
		if len(s.TopReasons) > 0 {
			sb.WriteString("Top reasons:\n")
			for i, r := range s.TopReasons {
				fmt.Fprintf(&sb, "  %d. %s — %d min (%d incidents)\n", i+1, r.Reason, r.TotalMinutes, r.Incidents)
			}
		}
	}

	if s.Stale {
		sb.WriteString("Warning: report data may be stale.\n")
	}
	if s.LastError != "" {
		sb.WriteString("Last refresh error: " + s.LastError + "\n")
	}
	return sb.String()
}

func renderSummaryNotice(s *Summary) string {
	if s.NoIncidents {
		return fmt.Sprintf("Shift %s - %s finished with no recorded downtime.",
			s.Window.Start.Format("15:04"), s.Window.End.Format("15:04"))
	}
	return fmt.Sprintf("Shift %s - %s finished: %d incidents, %d min of downtime.",
		s.Window.Start.Format("15:04"), s.Window.End.Format("15:04"), s.Incidents, s.TotalMinutes)
}
