package resolver

import (
	"strings"
	"unicode"

	"github.com/calprompt/calprompt/pkg/calendar"
)

// stopWords carry no meaning for matching and are always dropped.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "this": true, "that": true,
	"my": true, "our": true, "your": true, "his": true, "her": true, "their": true, "me": true, "i": true,
	"with": true, "at": true, "on": true, "in": true, "for": true, "to": true, "from": true,
	"of": true, "and": true, "or": true, "about": true,
	"today": true, "tomorrow": true, "tonight": true,
}

// genericWords name a kind of event. They are ignored next to a more specific keyword
// ("dentist appointment" finds "Dentist") and matched on their own otherwise.
var genericWords = map[string]bool{
	"event": true, "events": true, "appointment": true, "appointments": true,
	"meeting": true, "meetings": true, "call": true,
}

type matcher struct {
	keywords []string
	generic  []string
	phrase   string
}

// newMatcher splits text into lowercase keywords. Text made only of stop words is matched as a
// whole phrase instead.
func newMatcher(text string) matcher {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return matcher{}
	}
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '@' && r != '.' && r != '-' && r != '_'
	})
	var m matcher
	for _, w := range words {
		w = strings.Trim(w, ".-_")
		switch {
		case w == "" || stopWords[w]:
		case genericWords[w]:
			m.generic = append(m.generic, strings.TrimSuffix(w, "s"))
		default:
			m.keywords = append(m.keywords, w)
		}
	}
	if len(m.keywords) == 0 && len(m.generic) == 0 {
		return matcher{phrase: text}
	}
	return m
}

// matches reports whether every specific keyword occurs in one of the event's searchable
// fields. Without specific keywords any generic word is enough. An empty matcher matches
// everything.
func (m matcher) matches(event calendar.Event) bool {
	haystack := searchable(event)
	if m.phrase != "" {
		return strings.Contains(haystack, m.phrase)
	}
	if len(m.keywords) == 0 && len(m.generic) > 0 {
		for _, g := range m.generic {
			if strings.Contains(haystack, g) {
				return true
			}
		}
		return false
	}
	for _, k := range m.keywords {
		if !strings.Contains(haystack, k) {
			return false
		}
	}
	return true
}

func searchable(event calendar.Event) string {
	fields := []string{event.Summary, event.Description, event.Location}
	for _, a := range event.Attendees {
		fields = append(fields, a.Email)
	}
	return strings.ToLower(strings.Join(fields, "\n"))
}
