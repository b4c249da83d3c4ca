package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a headed block of output with optional suggestions and follow-up commands
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Detail      []string
	Suggestions []string
	Commands    []string
	NoColor     bool
}

// Format renders the message
//
// Example output:
//
//	✗ CLASS NOT FOUND: example.com/app/model.Usr
//
//	   Did you mean: example.com/app/model.User?
//
//	   → List mapped classes: refproxy inspect
func (m Message) Format() string {
	var b strings.Builder

	var head *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		head, symbol = color.New(color.FgYellow, color.Bold), "!"
	case LevelInfo:
		head, symbol = color.New(color.FgCyan, color.Bold), "i"
	default:
		head, symbol = color.New(color.FgRed, color.Bold), "✗"
	}
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if m.NoColor {
		head.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	for _, line := range m.Detail {
		fmt.Fprintf(&b, "   %s\n", line)
	}

	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Commands) > 0 {
		b.WriteString("\n")
		for _, cmd := range m.Commands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// Write writes the formatted message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// WriteSuccess writes a success line to w
func WriteSuccess(w io.Writer, message string, noColor bool) {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	green.Fprintf(w, "✓ %s\n", message)
}

// ClassNotFound reports an unknown class with close matches from known
func ClassNotFound(class string, known []string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "class not found",
		Problem:     class,
		Suggestions: FindSimilar(class, known, DefaultMaxSuggestions),
		Commands:    []string{"List mapped classes: refproxy inspect"},
		NoColor:     noColor,
	}
}

// Warnings reports synthesis warnings for one class
func Warnings(class string, warnings []string, noColor bool) Message {
	return Message{
		Level:   LevelWarning,
		Context: "skipped members",
		Problem: class,
		Detail:  warnings,
		NoColor: noColor,
	}
}

const (
	// DefaultMaxSuggestions is the number of suggestions offered for a misspelt name
	DefaultMaxSuggestions = 3

	// DefaultMaxDistance caps the edit distance of a suggestion however long the name is
	DefaultMaxDistance = 3
)

// FindSimilar returns up to limit candidates closest to target by edit distance.
// Qualified names are compared on the type name after the last dot, so a misspelt class is
// matched against the type names of the known classes. A candidate is kept when it is
// within a third of the type name's length, at least one edit and at most
// DefaultMaxDistance.
func FindSimilar(target string, candidates []string, limit int) []string {
	type match struct {
		value    string
		distance int
	}

	short := typeName(strings.ToLower(target))
	maxDistance := min(DefaultMaxDistance, max(1, len([]rune(short))/3))

	var matches []match
	for _, candidate := range candidates {
		dist := levenshtein(short, typeName(strings.ToLower(candidate)))
		if dist <= maxDistance {
			matches = append(matches, match{candidate, dist})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].value < matches[j].value
	})

	result := make([]string, 0, limit)
	for i := 0; i < len(matches) && i < limit; i++ {
		result = append(result, matches[i].value)
	}
	return result
}

// typeName strips the package path of a qualified class name
func typeName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// levenshtein is the single-character edit distance between a and b
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
