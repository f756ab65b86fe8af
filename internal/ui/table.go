package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/carelinkhq/telecall/internal/appointment"
)

// AppointmentTable renders the user's appointments for the CLI.
func AppointmentTable(appts []appointment.Appointment) string {
	if len(appts) == 0 {
		return MutedStyle.Render("No appointments")
	}

	headers := []string{"#", "Room", "Doctor", "Patient", "Scheduled", "Status"}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Muted)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Foreground(Primary).Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)

	for i, a := range appts {
		t.Row(
			fmt.Sprintf("%d", i+1),
			a.RoomID,
			a.DoctorName,
			a.PatientName,
			a.ScheduledAt.Format("2006-01-02 15:04"),
			renderStatus(a.Status),
		)
	}

	return t.Render()
}

func renderStatus(status string) string {
	switch strings.ToLower(status) {
	case appointment.StatusConfirmed:
		return SuccessStyle.Render(status)
	case appointment.StatusCancelled:
		return ErrorStyle.Render(status)
	case appointment.StatusPending:
		return WarningStyle.Render(status)
	default:
		return MutedStyle.Render(status)
	}
}
