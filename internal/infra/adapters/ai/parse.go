package ai

import (
	"errors"
	"strings"
	"unicode/utf8"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
)

// parseArticle turns a model reply in the TITLE/TAGS/CONTENT layout into Content.
// Replies without the markers are accepted when a markdown heading can serve as title.
func parseArticle(provider, raw string) (*model.Content, error) {
	text := stripFence(raw)

	var (
		title, tags string
		bodyLines   []string
		inContent   bool
	)
	for _, line := range strings.Split(text, "\n") {
		if inContent {
			bodyLines = append(bodyLines, line)
			continue
		}
		key, val, ok := marker(line)
		switch {
		case ok && key == "title" && title == "":
			title = val
		case ok && key == "tags":
			tags = val
		case ok && key == "content" && (val == "" || title != ""):
			// Lines before the marker are preamble, but a heading there is
			// still the best title when no TITLE marker came first.
			if title == "" {
				title, _ = headingTitle(strings.Join(bodyLines, "\n"))
			}
			inContent = true
			bodyLines = bodyLines[:0]
			if val != "" {
				bodyLines = append(bodyLines, val)
			}
		default:
			bodyLines = append(bodyLines, line)
		}
	}

	body := strings.TrimSpace(strings.Join(bodyLines, "\n"))
	if title == "" {
		title, body = headingTitle(body)
	}
	title = cleanTitle(title)
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		title = strings.TrimSpace(string([]rune(title)[:model.MaxTitleLength]))
	}

	c, err := model.NewContent(title, body, splitTags(tags))
	if err != nil {
		// The cause is flattened so a bad reply is not mistaken for invalid caller input.
		return nil, &domain.GenerationError{Provider: provider, Reason: "malformed response", Retryable: true, Err: errors.New(err.Error())}
	}
	return c, nil
}

// marker recognizes "TITLE: x", "**Title:** x" and similar lines. A content
// marker carrying text is only taken as one after a title marker, since
// "## Content: ..." is also an ordinary heading.
func marker(line string) (key, val string, ok bool) {
	l := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
	l = strings.TrimPrefix(l, "**")
	i := strings.IndexByte(l, ':')
	if i <= 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(strings.Trim(l[:i], "*")))
	switch key {
	case "title", "tags", "content":
	default:
		return "", "", false
	}
	val = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l[i+1:]), "**"))
	return key, val, true
}

// headingTitle takes the first markdown heading as the title and removes it from the body.
func headingTitle(body string) (string, string) {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "#") {
			title := strings.TrimSpace(strings.TrimLeft(t, "#"))
			rest := strings.TrimSpace(strings.Join(append(lines[:i:i], lines[i+1:]...), "\n"))
			return title, rest
		}
		return "", body
	}
	return "", body
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_`")
	s = strings.Trim(s, `"'“”`)
	return strings.TrimSpace(s)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
