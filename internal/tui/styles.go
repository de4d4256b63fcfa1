package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(18)

	focusedSidebarStyle = sidebarStyle.
				BorderForeground(lipgloss.Color("62"))

	contentStyle = lipgloss.NewStyle().
			Padding(0, 2)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	activeNavStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	cursorNavStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))

	selectedRowStyle = lipgloss.NewStyle().Background(lipgloss.Color("236"))
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("62"))
	tabStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	statusPending   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusOther     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	buttonStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Background(lipgloss.Color("237")).Padding(0, 1)
	comboStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	toastStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")).Padding(0, 1)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	modalStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(1, 3)

	overlayStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 4)
)

func styleForStatus(rec models.TaskRecord) lipgloss.Style {
	switch {
	case rec.IsPending():
		return statusPending
	case rec.IsCompleted():
		return statusCompleted
	default:
		return statusOther
	}
}
