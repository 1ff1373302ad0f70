package session

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hako/durafmt"
	"github.com/pterm/pterm"

	"github.com/trackerhq/sitewatch/internal/ui"
)

const noSessionsMsg = "No sessions found for the specified time range"

const timeFormat = "Jan 02, 2006 03:04 PM"

// printSessionsTable prints a session table to the command-line.
func printSessionsTable(w io.Writer, sessions []Session) {
	tableBody := make([][]string, len(sessions))

	for i := range sessions {
		sess := sessions[i]

		var statusText string

		switch sess.Status {
		case StatusCompleted:
			statusText = ui.Green(string(sess.Status))
		case StatusSuspended:
			statusText = ui.Red(string(sess.Status))
		default:
			statusText = ui.Blue(string(sess.Status))
		}

		endDate := sess.EndTime.Format(timeFormat)
		if sess.EndTime.IsZero() {
			endDate = ""
		}

		duration := durafmt.Parse(
			time.Duration(sess.Duration) * time.Second,
		).LimitToUnit("hours").LimitFirstN(2)

		row := []string{
			fmt.Sprintf("%d", i+1),
			sess.Domain,
			sess.StartTime.Format(timeFormat),
			endDate,
			duration.String(),
			fmt.Sprintf("%d", sess.Visits),
			statusText,
		}

		tableBody[i] = row
	}

	tableBody = append([][]string{
		{"#", "SITE", "STARTED", "ENDED", "DURATION", "VISITS", "STATUS"},
	}, tableBody...)

	ui.PrintTable(tableBody, w)
}

// List prints out a table of all the sessions that were created within
// the specified time range.
func List(w io.Writer, sessions []Session) error {
	if len(sessions) == 0 {
		pterm.Info.Println(noSessionsMsg)
		return nil
	}

	printSessionsTable(w, sessions)

	return nil
}

// ToJSON serialises sessions for the UI/sync layer.
func ToJSON(sessions []Session) ([]byte, error) {
	return json.Marshal(sessions)
}
