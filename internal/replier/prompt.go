package replier

import (
	"fmt"
	"strings"
)

// SystemPrompt frames every draft.
const SystemPrompt = "You are a helpful, concise social media assistant for a freelancer/web dev/AI tools brand. " +
	"Be friendly, add value, avoid spam. Keep replies under 280 characters. Use Indian English tone when appropriate."

// IntentLeadGeneration is the hint used for replies to hashtag candidates.
const IntentLeadGeneration = "lead_generation"

// commonAnswers are the canned replies keyed by intent keyword, in the order
// they are offered to the model and matched by the fallback.
var commonAnswers = []struct {
	Intent string
	Answer string
}{
	{"pricing", "We offer flexible pricing based on scope. Share your requirements and we’ll quote quickly. Starter websites begin around $500."},
	{"cost", "Cost depends on features and timeline. Happy to provide a quick estimate. What are you building?"},
	{"hire", "We’re available for new projects this month. Tell us about your idea and preferred timeline!"},
	{"available", "Yes, taking on select projects right now. What are you looking to build?"},
}

// BuildPrompt constructs the user message for a reply draft
func BuildPrompt(c Context) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("User @%s said: '%s'.\n", handleOr(c.AuthorHandle), c.SourceText))
	sb.WriteString(fmt.Sprintf("Profile: %s\n", c.AuthorBio))
	sb.WriteString(fmt.Sprintf("Intent hint: %s\n", c.IntentHint))
	sb.WriteString("Use the following short answers if relevant:\n")
	for i, qa := range commonAnswers {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("- %s: %s", qa.Intent, qa.Answer))
	}

	return sb.String()
}

// Fallback is the deterministic reply used when generation fails: the canned
// answer for the intent hint, else for the first intent keyword in the source
// text, else a generic thank-you.
func Fallback(c Context) string {
	hint := strings.ToLower(c.IntentHint)
	for _, qa := range commonAnswers {
		if hint == qa.Intent {
			return qa.Answer
		}
	}
	text := strings.ToLower(c.SourceText)
	for _, qa := range commonAnswers {
		if strings.Contains(text, qa.Intent) {
			return qa.Answer
		}
	}
	return fmt.Sprintf("Thanks @%s! Appreciate your message. DM us more details and we’ll help.", handleOr(c.AuthorHandle))
}

// IntentFor returns the first keyword found in text (case-insensitive), or "".
func IntentFor(text string, keywords []string) string {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

func handleOr(h string) string {
	if h == "" {
		return "there"
	}
	return h
}
