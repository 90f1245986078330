package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/openmech/subfarm/pkg/core"
)

// Cell styles keyed by status kind. Styles are applied to text that has
// already been padded to its column width, so escape sequences never
// count against alignment.
var (
	pendingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	inProgressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	passStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	partialStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failureStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

func styleFor(kind core.Kind) lipgloss.Style {
	switch kind {
	case core.KindPass:
		return passStyle
	case core.KindPartialPass:
		return partialStyle
	case core.KindFailure:
		return failureStyle
	case core.KindInProgress:
		return inProgressStyle
	default:
		return pendingStyle
	}
}
