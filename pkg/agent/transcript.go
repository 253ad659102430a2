package agent

import (
	"strings"
)

// TurnKind identifies a transcript entry.
type TurnKind string

const (
	TurnAction      TurnKind = "action"
	TurnObservation TurnKind = "observation"
	TurnFinal       TurnKind = "final"
	TurnUnparsed    TurnKind = "unparsed"
)

// Turn is one transcript entry. Action turns use Thought, Tool and Input;
// the others carry Text.
type Turn struct {
	Kind    TurnKind `json:"kind"`
	Thought string   `json:"thought,omitempty"`
	Tool    string   `json:"tool,omitempty"`
	Input   string   `json:"input,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Transcript is the record of one run. It only grows and is never shared
// between runs.
type Transcript struct {
	Turns []Turn `json:"turns"`
}

func (t *Transcript) add(turn Turn) {
	t.Turns = append(t.Turns, turn)
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Turns)
}

// Tools returns the names of the tools called, in order.
func (t *Transcript) Tools() []string {
	if t == nil {
		return nil
	}
	var names []string
	for _, turn := range t.Turns {
		if turn.Kind == TurnAction {
			names = append(names, turn.Tool)
		}
	}
	return names
}

// String renders the transcript in the protocol format the model reads.
func (t *Transcript) String() string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	for _, turn := range t.Turns {
		switch turn.Kind {
		case TurnAction:
			writeThought(&b, turn.Thought)
			b.WriteString("Action: " + turn.Tool + "\n")
			b.WriteString("Action Input: " + turn.Input + "\n")
		case TurnObservation:
			b.WriteString("Observation: " + turn.Text + "\n")
		case TurnFinal:
			writeThought(&b, turn.Thought)
			b.WriteString("Final Answer: " + turn.Text + "\n")
		case TurnUnparsed:
			writeThought(&b, turn.Text)
		}
	}
	return b.String()
}

func writeThought(b *strings.Builder, thought string) {
	if thought == "" {
		thought = "..."
	}
	b.WriteString("Thought: " + thought + "\n")
}
