package agent

import (
	"regexp"
	"strings"
)

// Classifier flags descriptive questions that can be answered without tools.
type Classifier struct {
	descriptive []*regexp.Regexp
	data        []*regexp.Regexp
}

// NewClassifier compiles the keyword lists. Keywords match whole words,
// case-insensitively; a multi-word keyword tolerates any run of whitespace.
func NewClassifier(keywords, dataKeywords []string) *Classifier {
	return &Classifier{
		descriptive: compileKeywords(keywords),
		data:        compileKeywords(dataKeywords),
	}
}

func compileKeywords(keywords []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		words := strings.Fields(kw)
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		out = append(out, regexp.MustCompile(`(?i)\b`+strings.Join(words, `\s+`)+`\b`))
	}
	return out
}

// Match reports whether question hits a descriptive keyword and no data
// keyword.
func (c *Classifier) Match(question string) bool {
	if c == nil || !anyMatch(c.descriptive, question) {
		return false
	}
	return !anyMatch(c.data, question)
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
