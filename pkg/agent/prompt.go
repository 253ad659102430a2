package agent

import (
	"fmt"
	"strings"

	"github.com/alanlin8901/special-happiness/pkg/tools"
)

// DefaultInstructions open the system prompt unless the configuration
// replaces them.
const DefaultInstructions = `You are a helpful research assistant.
If the user asks a general descriptive question about the Northwind database (overview / purpose / what it is) answer DIRECTLY using LLMAnswer WITHOUT calling SQL tools unless explicit data is requested.`

// usage hints for the canonical tools, shown after the catalog entry.
var toolHints = map[string]string{
	tools.NamePaperSearch: "research / paper / dataset / algorithm questions needing PDF snippets.",
	tools.NameSQLSearch:   "semantic search over embedded SQL rows.",
	tools.NameSQLSchema:   "when unsure about table/column names BEFORE writing SQLQuery.",
	tools.NameSQLQuery:    "ONE clean pure SQL statement (no prose) ending with a semicolon.",
	tools.NameCode:        "calculations.",
	tools.NameLLMAnswer:   "general reasoning / explanations / Northwind overview.",
}

const formatContract = `Use the following format:

Question: the input question you must answer
Thought: <reason>
Action: <one of [%s]>
Action Input: <input>
Observation: <tool result>
... (Thought/Action/Action Input/Observation can repeat)
Thought: I now know the final answer
Final Answer: <the answer only>

Write exactly one Action per reply and stop after Action Input. After the final reasoning output exactly one line starting with 'Final Answer:' followed by the answer only.`

// SystemPrompt assembles the instructions, the tool catalog and the format
// contract.
func SystemPrompt(instructions string, catalog []tools.Tool) string {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n\nTools:\n")

	names := make([]string, len(catalog))
	for i, t := range catalog {
		names[i] = t.Name
		fmt.Fprintf(&b, "- %s: %s", t.Name, t.Description)
		if hint, ok := toolHints[t.Name]; ok {
			b.WriteString(" Use for " + hint)
		}
		b.WriteByte('\n')
	}

	if hasTool(catalog, tools.NameSQLQuery) {
		b.WriteString("\nIf SQLQuery returns SQL_ERROR, fix once then proceed.")
	}
	b.WriteString("\nIf a tool output starts with an error prefix such as SEARCH_ERROR: or CODE_ERROR:, do not repeat the same call. Minimize tool calls.\n\n")
	fmt.Fprintf(&b, formatContract, strings.Join(names, ", "))
	return b.String()
}

// userPrompt renders the question followed by the transcript so far. It ends
// with "Thought:" so the model continues the protocol.
func userPrompt(question string, transcript *Transcript) string {
	return "Question: " + question + "\n" + transcript.String() + "Thought:"
}

// correction is the synthetic observation appended after a reply that could
// not be parsed.
func correction(reason string, names []string) string {
	return fmt.Sprintf("Invalid format: %s. Reply with either\n"+
		"Action: <one of [%s]>\nAction Input: <input>\n"+
		"or one line starting with 'Final Answer:'.", reason, strings.Join(names, ", "))
}

func unknownToolObservation(name string, names []string) string {
	return fmt.Sprintf("%q is not a valid tool. Valid tools: %s.", name, strings.Join(names, ", "))
}

func hasTool(catalog []tools.Tool, name string) bool {
	for _, t := range catalog {
		if t.Name == name {
			return true
		}
	}
	return false
}
