package poem

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidScheme is returned for scheme entries that do not match <digits><letters>.
var ErrInvalidScheme = errors.New("poem: invalid scheme")

var entryRegex = regexp.MustCompile(`^(\d+)([a-z]+)$`)

// Entry describes one line of a poem: how many syllables it should have and
// which rhyme group its last word belongs to.
type Entry struct {
	Syllables int
	Group     string
}

func (e Entry) String() string {
	return strconv.Itoa(e.Syllables) + e.Group
}

// Scheme is the ordered list of line descriptions of a poem.
type Scheme []Entry

func (s Scheme) String() string {
	parts := make([]string, len(s))
	for i, e := range s {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}

// ParseEntry parses a single entry such as "5a" or "12bc".
func ParseEntry(s string) (Entry, error) {
	match := entryRegex.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return Entry{}, fmt.Errorf("%w: %q does not match <digits><letters>", ErrInvalidScheme, s)
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %q: %v", ErrInvalidScheme, s, err)
	}
	if n <= 0 {
		return Entry{}, fmt.Errorf("%w: %q needs a positive syllable count", ErrInvalidScheme, s)
	}
	return Entry{Syllables: n, Group: match[2]}, nil
}

// ParseScheme parses every entry in parts. An empty scheme is invalid.
func ParseScheme(parts []string) (Scheme, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: scheme is empty", ErrInvalidScheme)
	}
	scheme := make(Scheme, 0, len(parts))
	for i, p := range parts {
		e, err := ParseEntry(p)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		scheme = append(scheme, e)
	}
	return scheme, nil
}

// ParseSchemeString parses entries separated by commas and/or whitespace,
// for example "5a, 7b, 5a" or "5a 7b 5a".
func ParseSchemeString(s string) (Scheme, error) {
	return ParseScheme(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}))
}

// RhymeGroups maps a scheme group to the last words of the completed lines
// in that group, oldest first.
type RhymeGroups map[string][]string

// Target returns the word the next line of group should rhyme with, or ""
// when no line of the group has been completed yet.
func (g RhymeGroups) Target(group string) string {
	words := g[group]
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}

// Record appends the last word of a completed line to its group.
func (g RhymeGroups) Record(group, word string) {
	g[group] = append(g[group], word)
}
