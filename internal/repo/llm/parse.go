package llm

import (
	"regexp"
	"strings"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
)

var fencedBlockRe = regexp.MustCompile("(?s)```([a-zA-Z0-9+#._-]*)[ \t]*\n(.*?)```")

// ParseCompletion splits a raw completion into the structured payload: the
// first fenced code block becomes code/language, everything outside fenced
// blocks becomes the explanation. With no block at all, the whole text is
// explanation.
func ParseCompletion(text string) *models.AICodePayload {
	matches := fencedBlockRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return &models.AICodePayload{
			Explanation: strings.TrimSpace(text),
		}
	}

	first := matches[0]
	language := text[first[2]:first[3]]
	code := strings.TrimRight(text[first[4]:first[5]], "\n")

	var explanation strings.Builder
	prev := 0
	for _, m := range matches {
		explanation.WriteString(text[prev:m[0]])
		prev = m[1]
	}
	explanation.WriteString(text[prev:])

	return &models.AICodePayload{
		Code:        code,
		Language:    language,
		Explanation: strings.TrimSpace(explanation.String()),
	}
}
