package repl

import (
	"strings"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

// DisplayManager manages visual indicators and formatting for the REPL
type DisplayManager struct {
	useColors bool
	width     int
	verbose   bool
}

// NewDisplayManager creates a new display manager
func NewDisplayManager(useColors, verbose bool) *DisplayManager {
	return &DisplayManager{
		useColors: useColors,
		width:     80,
		verbose:   verbose,
	}
}

func (dm *DisplayManager) paint(color, text string) string {
	if !dm.useColors || text == "" {
		return text
	}
	return color + text + colorReset
}

// Prompt formats the input prompt
func (dm *DisplayManager) Prompt(text string) string { return dm.paint(colorCyan, text) }

// Label formats a field label or a condition
func (dm *DisplayManager) Label(text string) string { return dm.paint(colorBlue, text) }

// Success formats a confirmation
func (dm *DisplayManager) Success(text string) string { return dm.paint(colorGreen, text) }

// Warning formats a diagnostic
func (dm *DisplayManager) Warning(text string) string { return dm.paint(colorYellow, text) }

// Error formats an error message
func (dm *DisplayManager) Error(text string) string {
	return dm.paint(colorRed, "Error: "+strings.TrimPrefix(text, "Error: "))
}

// Header formats a title with an underline the width of the terminal
func (dm *DisplayManager) Header(title string) string {
	rule := strings.Repeat("=", min(len(title), dm.width))
	return dm.paint(colorGray, title+"\n"+rule)
}
