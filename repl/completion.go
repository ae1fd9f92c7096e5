package repl

import (
	"sort"
	"strings"
)

// Completer completes command names, global variables and feature names.
// It implements readline.AutoCompleter.
type Completer struct {
	repl *REPL
}

// NewCompleter creates a completer over the REPL's current result
func NewCompleter(r *REPL) *Completer {
	return &Completer{repl: r}
}

// findWordBoundaries returns the start of the word ending at pos. A word is
// letters, digits, underscores, '$' and ':'.
func findWordBoundaries(line []rune, pos int) (start, end int) {
	start = pos
	for start > 0 {
		r := line[start-1]
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '$' || r == ':' {
			start--
		} else {
			break
		}
	}
	return start, pos
}

// Do returns the suffixes completing the word before pos
func (c *Completer) Do(line []rune, pos int) (newLine [][]rune, length int) {
	start, end := findWordBoundaries(line, pos)
	word := string(line[start:end])
	before := strings.Fields(string(line[:start]))

	var candidates []string
	switch {
	case len(before) == 0:
		candidates = commands
	case before[0] == ":var" || before[0] == ":v":
		if len(before) == 1 {
			candidates = c.globals()
		} else {
			candidates = c.features()
		}
	case before[0] == ":show" || before[0] == ":s" || before[0] == ":sat":
		candidates = c.features()
	case before[0] == ":save":
		if len(before) == 2 {
			candidates = c.repl.serializers.ListSerializers()
		}
	}

	for _, cand := range candidates {
		if strings.HasPrefix(cand, word) && cand != word {
			newLine = append(newLine, []rune(cand[len(word):]))
		}
	}
	return newLine, len([]rune(word))
}

func (c *Completer) globals() []string {
	res := c.repl.result
	if res == nil || res.Globals == nil {
		return nil
	}
	names := res.Globals.Names()
	for i, n := range names {
		names[i] = "$" + n
	}
	sort.Strings(names)
	return names
}

func (c *Completer) features() []string {
	res := c.repl.result
	if res == nil || res.Space == nil {
		return nil
	}
	return res.Space.Features()
}
