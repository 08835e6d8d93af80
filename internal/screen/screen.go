package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/layout"
)

// Screen is one page of the player.
type Screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Screen, tea.Cmd)
	// View renders the content area, excluding header and footer.
	View(width, height int) string
	Title() string
}

// KeyHintProvider lets a screen replace the default footer hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// StatsProvider lets a screen supply the header's XP and level.
type StatsProvider interface {
	Stats() layout.Stats
}

// Closer is implemented by screens holding resources that must be
// released when the program exits.
type Closer interface {
	Close()
}
