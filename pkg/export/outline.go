package export

import (
	"fmt"
	"regexp"
	"strings"
)

// BlockKind is the type of an outline line.
type BlockKind string

const (
	BlockHeading  BlockKind = "heading"
	BlockBullet   BlockKind = "bullet"
	BlockCheckbox BlockKind = "checkbox"
	BlockText     BlockKind = "text"
)

// Block is one line of the generated report.
type Block struct {
	Kind    BlockKind `json:"kind" yaml:"kind"`
	Level   int       `json:"level,omitempty" yaml:"level,omitempty"`
	Checked bool      `json:"checked,omitempty" yaml:"checked,omitempty"`
	Text    string    `json:"text" yaml:"text"`
}

// ReportOutline is the generated markdown report reduced to a title and
// plain-text blocks.
type ReportOutline struct {
	Title  string  `json:"title" yaml:"title"`
	Caller string  `json:"caller" yaml:"caller"`
	Blocks []Block `json:"blocks" yaml:"blocks"`
}

var (
	headingRe  = regexp.MustCompile(`^(#{1,3})\s+(.*)$`)
	checkboxRe = regexp.MustCompile(`^- \[([ xX])\]\s+(.*)$`)
	bulletRe   = regexp.MustCompile(`^[-*]\s+(.*)$`)
)

// Outline parses the generated report. The first line is the title
// ("Report" when empty); the rest become blocks, blank lines dropped.
func Outline(markdown, caller string) ReportOutline {
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")

	o := ReportOutline{Title: "Report", Caller: Display(caller, Unknown)}
	if t := strings.TrimSpace(strings.TrimLeft(lines[0], "# ")); t != "" {
		o.Title = t
	}

	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case headingRe.MatchString(line):
			m := headingRe.FindStringSubmatch(line)
			o.Blocks = append(o.Blocks, Block{Kind: BlockHeading, Level: len(m[1]), Text: m[2]})
		case checkboxRe.MatchString(line):
			m := checkboxRe.FindStringSubmatch(line)
			o.Blocks = append(o.Blocks, Block{Kind: BlockCheckbox, Checked: m[1] != " ", Text: m[2]})
		case bulletRe.MatchString(line):
			m := bulletRe.FindStringSubmatch(line)
			o.Blocks = append(o.Blocks, Block{Kind: BlockBullet, Text: m[1]})
		default:
			o.Blocks = append(o.Blocks, Block{Kind: BlockText, Text: line})
		}
	}
	return o
}

// String renders the outline as plain text.
func (o ReportOutline) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nCaller: %s\n", o.Title, o.Caller)
	for _, blk := range o.Blocks {
		switch blk.Kind {
		case BlockHeading:
			fmt.Fprintf(&b, "\n%s\n%s\n", blk.Text, strings.Repeat(underline(blk.Level), len([]rune(blk.Text))))
		case BlockBullet:
			fmt.Fprintf(&b, "  • %s\n", blk.Text)
		case BlockCheckbox:
			mark := "☐"
			if blk.Checked {
				mark = "☑"
			}
			fmt.Fprintf(&b, "  %s %s\n", mark, blk.Text)
		default:
			fmt.Fprintf(&b, "%s\n", blk.Text)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func underline(level int) string {
	if level <= 1 {
		return "="
	}
	return "-"
}
