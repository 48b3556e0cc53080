// Package feedback turns a scored attempt into coaching text by prompting a
// chat model.
package feedback

import (
	"encoding/json"
	"fmt"
	"strings"

	"lautcoach/internal/phonetics"
	"lautcoach/internal/scoring"
)

const systemPrompt = "You are a German pronunciation coach helping English speakers. " +
	"Focus on practical mouth, tongue and lip positioning advice. Be encouraging but honest."

// BuildPrompt renders the user message for req.
func BuildPrompt(req scoring.FeedbackRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Target word: %q\n", req.Word)
	fmt.Fprintf(&b, "Target IPA: %s\n", req.TargetIPA)
	fmt.Fprintf(&b, "What we heard: %q\n", req.ObservedText)
	fmt.Fprintf(&b, "Similarity score: %.0f%%\n", req.Score)
	fmt.Fprintf(&b, "Phoneme errors: %s\n", describeErrors(req))
	fmt.Fprintf(&b, "Focus phoneme: %s\n", req.ModulePhoneme)
	fmt.Fprintf(&b, "Articulatory guidance: %s\n", req.ModuleTip)

	if tip, ok := phonetics.LookupTip(req.ModulePhoneme); ok {
		fmt.Fprintf(&b, "About %s (%s): %s\n", tip.Phoneme, tip.Description, tip.Articulation)
	}

	b.WriteString(`
Provide:
1. A brief encouraging feedback (2-3 sentences) about the attempt
2. 2-3 specific articulatory tips to improve (focus on the phoneme errors)

Respond in JSON format:
{
  "feedback": "Your feedback here...",
  "tips": ["tip1", "tip2", "tip3"]
}`)
	return b.String()
}

func describeErrors(req scoring.FeedbackRequest) string {
	if len(req.Errors) == 0 {
		return "No significant errors detected"
	}
	errs := req.Errors
	if len(errs) > phonetics.MaxErrors {
		errs = errs[:phonetics.MaxErrors]
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = fmt.Sprintf("Expected '%s' but heard '%s'", e.Target, e.Produced)
		if phonetics.IsCommonError(e.Target, e.Produced) {
			parts[i] += " (a typical English-speaker substitution)"
		}
	}
	return strings.Join(parts, ", ")
}

type reply struct {
	Feedback string   `json:"feedback"`
	Tips     []string `json:"tips"`
}

// Parse extracts feedback from a model reply. A JSON object may be wrapped in
// a markdown code fence. Anything that does not decode is returned verbatim as
// the feedback text with no tips.
func Parse(content string) scoring.Feedback {
	body := unfence(content)

	var r reply
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &r); err != nil {
		return scoring.Feedback{Text: strings.TrimSpace(body), Tips: []string{}}
	}
	tips := make([]string, 0, len(r.Tips))
	for _, t := range r.Tips {
		if t = strings.TrimSpace(t); t != "" {
			tips = append(tips, t)
		}
	}
	return scoring.Feedback{Text: strings.TrimSpace(r.Feedback), Tips: tips}
}

// unfence returns the first fenced block containing braces, without its
// language tag, or content unchanged when there is none.
func unfence(content string) string {
	if !strings.Contains(content, "```") {
		return content
	}
	for _, part := range strings.Split(content, "```") {
		if strings.Contains(part, "{") && strings.Contains(part, "}") {
			return strings.TrimPrefix(strings.TrimLeft(part, " \t"), "json")
		}
	}
	return content
}
