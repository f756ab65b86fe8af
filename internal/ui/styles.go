package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary    = lipgloss.Color("#2563EB") // CareLink blue
	Success    = lipgloss.Color("#10B981") // Emerald
	Warning    = lipgloss.Color("#F59E0B") // Amber
	Error      = lipgloss.Color("#EF4444") // Red
	Muted      = lipgloss.Color("#6B7280") // Gray
	Foreground = lipgloss.Color("#F9FAFB") // Light gray
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	ChatNameStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Background(Primary).
			Padding(0, 1).
			Bold(true)
)

func PrintTitle(text string) {
	fmt.Println(TitleStyle.Render(text))
}

func PrintSuccess(text string) {
	fmt.Println(SuccessStyle.Render("✓ " + text))
}

func PrintError(text string) {
	fmt.Println(ErrorStyle.Render("✗ " + text))
}

func PrintWarning(text string) {
	fmt.Println(WarningStyle.Render("! " + text))
}

func PrintInfo(text string) {
	fmt.Println(MutedStyle.Render(text))
}

func PrintStatus(text string) {
	fmt.Println(StatusStyle.Render(text))
}

// PrintChat renders one in-call chat line.
func PrintChat(sender, message string, ts int64) {
	when := time.UnixMilli(ts).Format("15:04")
	fmt.Printf("%s %s %s\n",
		MutedStyle.Render(when),
		ChatNameStyle.Render(sender+":"),
		message,
	)
}
