// Package prompt renders strategies into system prompts and interprets agent replies.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adam-a-i/ruya/internal/domain"
)

var objectionLabels = []struct {
	key   string
	label string
}{
	{domain.ObjectionPrice, "Price concerns"},
	{domain.ObjectionTiming, "Timing concerns"},
	{domain.ObjectionNotInterested, "Not interested"},
}

// Render turns a strategy into the agent's system prompt. The output depends only
// on the document, so the same strategy always renders the same string.
func Render(s domain.Strategy) string {
	var b strings.Builder

	b.WriteString("You are a professional real estate sales agent. Your goal is to book property viewing appointments.\n\n")

	b.WriteString("OPENING:\n")
	writeLine(&b, s.Opening.Greeting)
	writeLine(&b, s.Opening.Intro)

	b.WriteString("\nQUALIFICATION QUESTIONS:\n")
	for i, q := range s.Qualification.Questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}

	b.WriteString("\nOBJECTION HANDLING:\n")
	for _, o := range objectionLabels {
		if text, ok := s.ObjectionHandling[o.key]; ok {
			fmt.Fprintf(&b, "- %s: %s\n", o.label, text)
		}
	}
	for _, key := range extraObjectionKeys(s.ObjectionHandling) {
		fmt.Fprintf(&b, "- %s: %s\n", humanize(key), s.ObjectionHandling[key])
	}

	b.WriteString("\nCALL TO ACTION:\n")
	fmt.Fprintf(&b, "Primary: %s\n", s.CallToAction.MainCTA)
	fmt.Fprintf(&b, "Alternative: %s\n", s.CallToAction.AlternativeCTA)

	b.WriteString("\nTONE GUIDELINES:\n")
	fmt.Fprintf(&b, "- Style: %s\n", s.Tone.Style)
	fmt.Fprintf(&b, "- Pace: %s\n", s.Tone.Pace)
	fmt.Fprintf(&b, "- Empathy: %s\n", s.Tone.Empathy)

	b.WriteString("\nRemember: Be natural, listen actively, and focus on booking the viewing appointment. Keep responses concise (under 30 words when possible).\n")
	fmt.Fprintf(&b, "When the conversation is over (the prospect declines firmly, asks you to stop, or the appointment is confirmed), say a short goodbye and end your reply with %s.", EndCallSentinel)

	return b.String()
}

func writeLine(b *strings.Builder, s string) {
	if s == "" {
		return
	}
	b.WriteString(s)
	b.WriteByte('\n')
}

func extraObjectionKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case domain.ObjectionPrice, domain.ObjectionTiming, domain.ObjectionNotInterested:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func humanize(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	if len(words) == 0 {
		return key
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}
