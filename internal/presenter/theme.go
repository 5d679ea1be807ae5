package presenter

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors of the terminal chat log.
type Theme struct {
	Sender  lipgloss.Color
	Private lipgloss.Color
	History lipgloss.Color
	Notice  lipgloss.Color
	Admin   lipgloss.Color
	Video   lipgloss.Color
}

// DefaultTheme returns the default theme.
func DefaultTheme() Theme {
	return Theme{
		Sender:  lipgloss.Color("12"),  // Blue
		Private: lipgloss.Color("13"),  // Magenta
		History: lipgloss.Color("240"), // Gray
		Notice:  lipgloss.Color("14"),  // Cyan
		Admin:   lipgloss.Color("11"),  // Yellow
		Video:   lipgloss.Color("10"),  // Green
	}
}

type styles struct {
	sender  lipgloss.Style
	private lipgloss.Style
	history lipgloss.Style
	notice  lipgloss.Style
	admin   lipgloss.Style
	video   lipgloss.Style
}

func newStyles(theme Theme) styles {
	return styles{
		sender:  lipgloss.NewStyle().Foreground(theme.Sender).Bold(true),
		private: lipgloss.NewStyle().Foreground(theme.Private).Bold(true),
		history: lipgloss.NewStyle().Foreground(theme.History),
		notice:  lipgloss.NewStyle().Foreground(theme.Notice).Italic(true),
		admin:   lipgloss.NewStyle().Foreground(theme.Admin).Bold(true),
		video:   lipgloss.NewStyle().Foreground(theme.Video),
	}
}
