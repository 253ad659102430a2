package agent

import (
	"regexp"
	"strings"
)

// Step is the decoded meaning of one model reply. It is one of FinalAnswer,
// ToolCall or ParseFailure.
type Step interface {
	step()
}

// FinalAnswer ends the run with Text.
type FinalAnswer struct {
	Thought string
	Text    string
}

// ToolCall asks for Tool to be invoked with Input.
type ToolCall struct {
	Thought string
	Tool    string
	Input   string
}

// ParseFailure is a reply that follows neither form of the protocol.
type ParseFailure struct {
	Raw    string
	Reason string
}

func (FinalAnswer) step()  {}
func (ToolCall) step()     {}
func (ParseFailure) step() {}

var (
	finalAnswerLine = regexp.MustCompile(`(?i)^\s*\**final\s+answer\**\s*:\s*`)
	actionLine      = regexp.MustCompile(`(?i)^\s*\**action\**\s*:\s*`)
	actionInputLine = regexp.MustCompile(`(?i)^\s*\**action\s+input\**\s*:\s*`)
	thoughtLine     = regexp.MustCompile(`(?i)^\s*\**thought\**\s*:\s*`)

	// Lines starting with these end a multi-line Final Answer or Action Input.
	keywordLine = regexp.MustCompile(`(?i)^\s*\**(thought|action|action\s+input|observation|question|final\s+answer)\**\s*:`)
)

// ParseStep decodes a model reply. When a reply carries both an Action and a
// Final Answer, whichever appears first wins.
func ParseStep(text string) Step {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return ParseFailure{Raw: text, Reason: "empty reply"}
	}

	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	for i, line := range lines {
		if loc := finalAnswerLine.FindStringIndex(line); loc != nil {
			answer := block(line[loc[1]:], lines[i+1:])
			if answer == "" {
				return ParseFailure{Raw: raw, Reason: "Final Answer is empty"}
			}
			return FinalAnswer{Thought: thought(lines[:i]), Text: answer}
		}
		// "Action Input:" also starts with "Action", so rule it out first.
		if actionInputLine.MatchString(line) {
			return ParseFailure{Raw: raw, Reason: "Action Input without a preceding Action"}
		}
		if loc := actionLine.FindStringIndex(line); loc != nil {
			return parseToolCall(raw, lines[:i], line[loc[1]:], lines[i+1:])
		}
	}
	return ParseFailure{Raw: raw, Reason: "no Action or Final Answer found"}
}

func parseToolCall(raw string, before []string, name string, after []string) Step {
	name = strings.Trim(strings.TrimSpace(name), "`'\"[]*. ")
	if name == "" {
		return ParseFailure{Raw: raw, Reason: "Action names no tool"}
	}

	for i, line := range after {
		if strings.TrimSpace(line) == "" {
			continue
		}
		loc := actionInputLine.FindStringIndex(line)
		if loc == nil {
			break
		}
		input := block(line[loc[1]:], after[i+1:])
		return ToolCall{
			Thought: thought(before),
			Tool:    name,
			Input:   unquote(input),
		}
	}
	return ParseFailure{Raw: raw, Reason: "Action " + name + " has no Action Input"}
}

// unquote drops one pair of double quotes wrapping the whole input. Quotes
// that belong to the input, such as a trailing SQL string literal, stay.
func unquote(input string) string {
	if len(input) >= 2 && strings.HasPrefix(input, `"`) && strings.HasSuffix(input, `"`) &&
		!strings.Contains(input[1:len(input)-1], `"`) {
		return input[1 : len(input)-1]
	}
	return input
}

// block joins first with the following lines up to the next protocol keyword.
func block(first string, rest []string) string {
	parts := []string{first}
	for _, line := range rest {
		if keywordLine.MatchString(line) {
			break
		}
		parts = append(parts, line)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func thought(lines []string) string {
	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if loc := thoughtLine.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}
	return strings.TrimSpace(text)
}
