package export

import (
	"fmt"
	"strings"
)

// Speaker identifies who said a call log line.
type Speaker string

const (
	SpeakerAgent    Speaker = "Agent"
	SpeakerCustomer Speaker = "Customer"
	SpeakerUnknown  Speaker = "Unknown"
)

const (
	agentPrefix  = "Support Agent:"
	clientPrefix = "Client:"
)

// Utterance is one labelled line of a call log.
type Utterance struct {
	Speaker Speaker `json:"speaker" yaml:"speaker"`
	Text    string  `json:"text" yaml:"text"`
}

// FormatCallLog splits a raw call log into labelled lines. Blank lines and
// lines with no text after the prefix are dropped.
func FormatCallLog(log string) []Utterance {
	var out []Utterance
	for _, line := range strings.Split(log, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		u := Utterance{Speaker: SpeakerUnknown, Text: line}
		switch {
		case strings.HasPrefix(line, agentPrefix):
			u = Utterance{Speaker: SpeakerAgent, Text: strings.TrimSpace(strings.TrimPrefix(line, agentPrefix))}
		case strings.HasPrefix(line, clientPrefix):
			u = Utterance{Speaker: SpeakerCustomer, Text: strings.TrimSpace(strings.TrimPrefix(line, clientPrefix))}
		}
		if u.Text == "" {
			continue
		}
		out = append(out, u)
	}
	return out
}

// RenderCallLog prints utterances as "Speaker: text" lines.
func RenderCallLog(lines []Utterance) string {
	if len(lines) == 0 {
		return NoCallLog
	}
	var b strings.Builder
	for _, u := range lines {
		fmt.Fprintf(&b, "%s: %s\n", u.Speaker, u.Text)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
