package ai

import (
	"fmt"
	"strings"

	"telegram-ai-autoposter/internal/domain/ports/adapter"
)

const systemPrompt = `You are an experienced technical writer who publishes on developer blogs.
Write in clear, engaging English using markdown. Never include preambles or notes about yourself.`

// previousExcerptTokens bounds how much of the replaced article goes back into a regenerate prompt.
const previousExcerptTokens = 400

// previousExcerptChars mirrors the character cut applied before token budgeting.
const previousExcerptChars = 500

func buildUserPrompt(req adapter.GenerationRequest, tokens tokenCounter) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a complete blog article about: %s\n\n", req.Topic)
	sb.WriteString("Requirements:\n")
	sb.WriteString("- An engaging, specific title (at most 120 characters)\n")
	sb.WriteString("- An introduction, several sections with markdown headings, and a conclusion\n")
	sb.WriteString("- 800 to 1200 words\n")
	sb.WriteString("- Three to five short lowercase tags\n")

	if p := req.Previous; p != nil {
		excerpt := p.Body
		if r := []rune(excerpt); len(r) > previousExcerptChars {
			excerpt = string(r[:previousExcerptChars])
		}
		if tokens != nil {
			excerpt = tokens.Truncate(excerpt, previousExcerptTokens)
		}
		sb.WriteString("\nA previous version was rejected by the author. Take a clearly different angle and structure.\n")
		fmt.Fprintf(&sb, "Previous title: %s\n", p.Title)
		fmt.Fprintf(&sb, "Previous opening:\n%s\n", excerpt)
	}

	sb.WriteString("\nFormat your response exactly as:\n")
	sb.WriteString("TITLE: <title>\n")
	sb.WriteString("TAGS: <tag1>, <tag2>, <tag3>\n\n")
	sb.WriteString("CONTENT:\n<markdown article>\n")
	return sb.String()
}
