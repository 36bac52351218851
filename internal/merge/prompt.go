package merge

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"sos/shared/types"

	"github.com/fatih/color"
)

// Choice is the answer to a conflict prompt
type Choice int

const (
	ChoiceMine Choice = iota
	ChoiceTheirs
	ChoiceNext
	ChoiceManual
)

func (c Choice) String() string {
	switch c {
	case ChoiceMine:
		return "mine"
	case ChoiceTheirs:
		return "theirs"
	case ChoiceNext:
		return "next"
	case ChoiceManual:
		return "manual"
	}
	return fmt.Sprintf("Choice(%d)", int(c))
}

// ParseChoice reads the first character of an answer. Blank and unknown
// answers select mine.
func ParseChoice(answer string) Choice {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ChoiceMine
	}
	switch strings.ToLower(answer[:1]) {
	case "t":
		return ChoiceTheirs
	case "m":
		return ChoiceNext
	case "u":
		return ChoiceManual
	}
	return ChoiceMine
}

// ConflictPrompter asks which side of an intra-line conflict to keep.
// Calls are made one at a time, in block order.
type ConflictPrompter interface {
	Choose(block shared.MergeBlock) (Choice, error)
}

// ConsolePrompter shows both sides of a conflict and reads the answer from In
type ConsolePrompter struct {
	In  *bufio.Reader
	Out io.Writer
}

// NewConsolePrompter prompts on stdout and reads stdin
func NewConsolePrompter() *ConsolePrompter {
	return &ConsolePrompter{In: bufio.NewReader(os.Stdin), Out: os.Stdout}
}

func (p *ConsolePrompter) Choose(block shared.MergeBlock) (Choice, error) {
	theirs := color.New(color.FgRed).SprintFunc()
	mine := color.New(color.FgGreen).SprintFunc()

	if block.Replaces != nil {
		for _, line := range block.Replaces.Lines {
			fmt.Fprintf(p.Out, "%s %s\n", theirs("THR"), line)
		}
	}
	for _, line := range block.Lines {
		fmt.Fprintf(p.Out, "%s %s\n", mine("MIN"), line)
	}
	fmt.Fprint(p.Out, "Keep mine (i), theirs (t), next (m) or edit manually (u)? [i] ")

	answer, err := p.In.ReadString('\n')
	if err != nil && err != io.EOF {
		return ChoiceMine, fmt.Errorf("reading answer: %w", err)
	}
	return ParseChoice(answer), nil
}

// ScriptedPrompter answers conflicts from a fixed list, then falls back to mine
type ScriptedPrompter struct {
	Answers []string
	Asked   []shared.MergeBlock
}

func (p *ScriptedPrompter) Choose(block shared.MergeBlock) (Choice, error) {
	p.Asked = append(p.Asked, block)
	if len(p.Answers) == 0 {
		return ChoiceMine, nil
	}
	answer := p.Answers[0]
	p.Answers = p.Answers[1:]
	return ParseChoice(answer), nil
}
