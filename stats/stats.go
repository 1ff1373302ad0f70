// Package stats reports aggregated browsing statistics
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hako/durafmt"
	"github.com/pterm/pterm"

	"github.com/trackerhq/sitewatch/config"
	"github.com/trackerhq/sitewatch/internal/session"
	"github.com/trackerhq/sitewatch/internal/ui"
)

const (
	barChartChar  = "▇"
	noSessionsMsg = "No sessions found for the specified time range"

	maxChartRows = 15
)

// DomainStat is the per-domain slice of a report.
type DomainStat struct {
	TimeSpentMs int64 `json:"timeSpentMs"`
	Visits      int   `json:"visits"`
}

// Summary is the aggregate returned to the UI/sync layer. Only
// validated sessions are folded in; corrupt records are counted and
// excluded so they can never distort user-visible numbers.
type Summary struct {
	StartTime      time.Time              `json:"startTime"`
	EndTime        time.Time              `json:"endTime"`
	TotalTimeMs    int64                  `json:"totalTimeMs"`
	PerDomain      map[string]*DomainStat `json:"perDomain"`
	Sessions       int                    `json:"sessions"`
	Completed      int                    `json:"completed"`
	CorruptRecords int64                  `json:"corruptRecords"`
}

// Stats computes and renders a report over a date range.
type Stats struct {
	Opts *config.FilterConfig

	// MaxSessionDuration is the validation ceiling applied to each
	// record before it is aggregated.
	MaxSessionDuration time.Duration

	Summary Summary

	daily map[string]time.Duration
}

// Compute folds the given sessions into the summary, validating every
// record independently before it contributes to any total.
func (s *Stats) Compute(sessions []session.Session) {
	s.Summary = Summary{
		StartTime: s.Opts.StartTime,
		EndTime:   s.Opts.EndTime,
		PerDomain: make(map[string]*DomainStat),
	}
	s.daily = make(map[string]time.Duration)

	activeSeen := make(map[string]string)

	for i := range sessions {
		sess := sessions[i]

		if err := sess.Validate(s.MaxSessionDuration); err != nil {
			s.Summary.CorruptRecords++

			slog.Error(
				"excluding invalid session from aggregates",
				slog.Any("error", err),
			)

			continue
		}

		if sess.Status != session.StatusCompleted {
			// more than one live session per domain is a corruption
			// state, never something to sum
			if prev, ok := activeSeen[sess.Domain]; ok {
				s.Summary.CorruptRecords++

				slog.Error(
					"duplicate active session for domain",
					slog.String("domain", sess.Domain),
					slog.String("session_id", sess.ID),
					slog.String("conflicts_with", prev),
				)

				continue
			}

			activeSeen[sess.Domain] = sess.ID
		}

		ds, ok := s.Summary.PerDomain[sess.Domain]
		if !ok {
			ds = &DomainStat{}
			s.Summary.PerDomain[sess.Domain] = ds
		}

		ds.TimeSpentMs += sess.Duration * 1000
		ds.Visits += sess.Visits

		s.Summary.TotalTimeMs += sess.Duration * 1000

		// date-only keys so long ranges never fold two years' days
		// together, and lexical order is chronological order
		s.daily[sess.StartTime.UTC().Format(time.DateOnly)] += time.Duration(
			sess.Duration,
		) * time.Second

		s.Summary.Sessions++

		if sess.Status == session.StatusCompleted {
			s.Summary.Completed++
		}
	}

	s.verify()
}

// verify cross-checks the finished aggregate. A total of zero alongside
// non-zero per-domain entries is a known defect signature and must fail
// loudly in diagnostics rather than ship quietly.
func (s *Stats) verify() {
	var sum int64

	var nonZeroDomains bool

	for _, ds := range s.Summary.PerDomain {
		sum += ds.TimeSpentMs

		if ds.TimeSpentMs > 0 {
			nonZeroDomains = true
		}
	}

	if sum != s.Summary.TotalTimeMs {
		slog.Error(
			"aggregate mismatch: per-domain sum diverges from total",
			slog.Int64("total_ms", s.Summary.TotalTimeMs),
			slog.Int64("per_domain_sum_ms", sum),
		)

		s.Summary.TotalTimeMs = sum
	}

	if s.Summary.TotalTimeMs == 0 && nonZeroDomains {
		slog.Error(
			"aggregate inconsistency: zero total with populated site list",
			slog.Int("domains", len(s.Summary.PerDomain)),
		)
	}
}

// ToJSON serialises the summary for the UI/sync layer.
func (s *Stats) ToJSON() ([]byte, error) {
	return json.Marshal(s.Summary)
}

type domainRow struct {
	domain string
	stat   *DomainStat
}

func (s *Stats) sortedDomains() []domainRow {
	rows := make([]domainRow, 0, len(s.Summary.PerDomain))

	for d, ds := range s.Summary.PerDomain {
		rows = append(rows, domainRow{d, ds})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].stat.TimeSpentMs > rows[j].stat.TimeSpentMs
	})

	return rows
}

func formatMs(ms int64) string {
	d := time.Duration(ms) * time.Millisecond

	//nolint:gomnd // limit to first 2 units
	return durafmt.Parse(d).LimitToUnit("hours").LimitFirstN(2).String()
}

// getSummary renders the headline totals.
func (s *Stats) getSummary() string {
	header := fmt.Sprintf("%s\n", ui.Blue("Summary"))

	timeLogged := fmt.Sprintf(
		"Time tracked: %s\n",
		ui.Green(formatMs(s.Summary.TotalTimeMs)),
	)

	sites := fmt.Sprintln("Sites visited:", ui.Green(len(s.Summary.PerDomain)))

	sessions := fmt.Sprintln("Sessions:", ui.Green(s.Summary.Sessions))

	out := header + timeLogged + sites + sessions

	if s.Summary.CorruptRecords > 0 {
		out += fmt.Sprintln(
			"Records excluded as corrupt:",
			ui.Red(s.Summary.CorruptRecords),
		)
	}

	return out
}

// getDomains renders the per-domain breakdown.
func (s *Stats) getDomains() string {
	rows := s.sortedDomains()

	if len(rows) == 0 {
		return ""
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("\n%s\n", ui.Blue("Sites")))

	for _, r := range rows {
		builder.WriteString(fmt.Sprintf(
			"%s: %s (%d visits)\n",
			r.domain,
			ui.Green(formatMs(r.stat.TimeSpentMs)),
			r.stat.Visits,
		))
	}

	return builder.String()
}

// getBarChart renders a horizontal chart of the busiest domains in
// minutes.
func (s *Stats) getBarChart() string {
	rows := s.sortedDomains()

	if len(rows) == 0 {
		return ""
	}

	if len(rows) > maxChartRows {
		rows = rows[:maxChartRows]
	}

	var bars pterm.Bars

	for _, r := range rows {
		minutes := time.Duration(r.stat.TimeSpentMs) * time.Millisecond

		bars = append(bars, pterm.Bar{
			Value: int(minutes.Minutes()),
			Label: r.domain,
		})
	}

	header := ui.Blue("\nTop sites (minutes)")

	chart, err := pterm.DefaultBarChart.WithHorizontalBarCharacter(barChartChar).
		WithHorizontal().
		WithShowValue().
		WithBars(bars).
		Srender()
	if err != nil {
		pterm.Error.Println(err)
		return ""
	}

	return header + chart
}

// getDaily renders the day-by-day breakdown of the reporting period.
func (s *Stats) getDaily() string {
	if len(s.daily) == 0 {
		return ""
	}

	days := make([]string, 0, len(s.daily))
	for d := range s.daily {
		days = append(days, d)
	}

	sort.Strings(days)

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("\n%s\n", ui.Blue("Daily breakdown")))

	for _, d := range days {
		//nolint:gomnd // limit to first 2 units
		dur := durafmt.Parse(s.daily[d]).LimitToUnit("hours").LimitFirstN(2)

		builder.WriteString(fmt.Sprintf("%s: %s\n", d, ui.Green(dur)))
	}

	return builder.String()
}

// Show writes the report computed for the configured time period.
func (s *Stats) Show(w io.Writer) error {
	if s.Summary.Sessions == 0 && s.Summary.CorruptRecords == 0 {
		pterm.Info.Println(noSessionsMsg)
		return nil
	}

	reportingStart := s.Opts.StartTime.Format("January 02, 2006")
	reportingEnd := s.Opts.EndTime.Format("January 02, 2006")
	timePeriod := "Reporting period: " + reportingStart + " - " + reportingEnd

	header := pterm.DefaultHeader.WithBackgroundStyle(pterm.NewStyle(pterm.BgYellow)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Sprintfln("%s", timePeriod)

	output := fmt.Sprint(
		header,
		s.getSummary(),
		s.getDomains(),
		s.getDaily(),
		s.getBarChart(),
	)

	fmt.Fprintln(w, strings.TrimSpace(output))

	return nil
}
