package router

import "strings"

// stopWords is a frozen list — the repeated-prompt advisory is
// user-observable, so the terms it matches on must not drift between
// releases. Keep additions rare and deliberate.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "have": true, "will": true, "your": true,
	"what": true, "when": true, "where": true, "which": true, "there": true,
	"about": true, "into": true, "then": true, "than": true, "them": true,
	"these": true, "those": true, "would": true, "could": true, "should": true,
	"please": true, "like": true, "just": true,
}

// maxFTSTerms bounds the OR-joined query built from a prompt, per
// spec.md's "freeze the list and the maximum of ten OR-terms."
const maxFTSTerms = 10

// buildPromptFTSTerms tokenizes a prompt into the terms used to search
// for similar prior prompts: words longer than three characters, with
// stop words removed, capped at maxFTSTerms.
func buildPromptFTSTerms(prompt string) []string {
	var terms []string
	for _, word := range strings.Fields(prompt) {
		w := strings.ToLower(strings.Trim(word, ".,!?;:()[]{}\"'"))
		if len(w) <= 3 || stopWords[w] {
			continue
		}
		terms = append(terms, w)
		if len(terms) == maxFTSTerms {
			break
		}
	}
	return terms
}
