// ABOUTME: Heuristic classifier for messages that read like actionable goals.
// ABOUTME: Pure string analysis with no I/O, safe to call on every send.

package classify

import "strings"

// minDirectLength is the trimmed content length above which an action verb
// alone is enough to call the message goal-like.
const minDirectLength = 20

// actionVerbs indicate the message asks for work to be done rather than
// information. Matched against whole words only.
var actionVerbs = map[string]struct{}{
	"add":       {},
	"analyze":   {},
	"automate":  {},
	"build":     {},
	"configure": {},
	"create":    {},
	"deploy":    {},
	"design":    {},
	"draft":     {},
	"fix":       {},
	"generate":  {},
	"implement": {},
	"install":   {},
	"integrate": {},
	"make":      {},
	"migrate":   {},
	"optimize":  {},
	"organize":  {},
	"prepare":   {},
	"refactor":  {},
	"research":  {},
	"schedule":  {},
	"setup":     {},
	"summarize": {},
	"update":    {},
	"write":     {},
}

// politePhrases mark request phrasing that implies a task even when the
// message is short.
var politePhrases = []string{
	"can you",
	"could you",
	"would you",
	"please",
	"help me",
	"i need",
	"i want",
	"i'd like",
}

// GoalLike reports whether content reads like an actionable goal: it must
// contain an action verb, and either be long enough to carry real intent or
// use polite-request phrasing.
func GoalLike(content string) bool {
	text := strings.ToLower(strings.TrimSpace(content))
	if text == "" {
		return false
	}

	if !hasActionVerb(text) {
		return false
	}

	if len(text) > minDirectLength {
		return true
	}

	for _, phrase := range politePhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}

	return false
}

// hasActionVerb checks each whitespace-separated word, stripping surrounding
// punctuation so "fix." and "(fix)" still match while "prefix" does not.
func hasActionVerb(text string) bool {
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,!?;:()[]{}\"'")
		if _, ok := actionVerbs[word]; ok {
			return true
		}
	}
	return false
}
