// internal/merge/merge.go
package merge

import (
	"fmt"
	"strings"

	"sos/internal/diff"
	"sos/internal/errors"
	"sos/internal/logging"
	"sos/internal/textenc"
	"sos/shared/types"

	"go.uber.org/zap"
)

// Input names the two sides of a merge. Each side is read from its file name
// when set, otherwise from its content.
type Input struct {
	File     []byte
	FileName string
	Into     []byte
	IntoName string
}

func (in Input) label(name string, content []byte) string {
	if name != "" {
		return name
	}
	if content == nil {
		return "<none>"
	}
	return "<buffer>"
}

// Merger merges the changes of one text into another line by line
type Merger struct {
	Logger   *zap.Logger
	Loader   *textenc.Loader
	Prompter ConflictPrompter
	Differ   *diff.Differ
	// EOL overrides the line ending of merge results when set
	EOL string
}

// NewMerger creates a merger. A nil prompter asks on the console.
func NewMerger(logger *zap.Logger, loader *textenc.Loader, prompter ConflictPrompter) *Merger {
	logger = logging.OrNop(logger)
	if loader == nil {
		loader = textenc.NewLoader(logger, textenc.UTF8)
	}
	if prompter == nil {
		prompter = NewConsolePrompter()
	}
	return &Merger{
		Logger:   logger,
		Loader:   loader,
		Prompter: prompter,
		Differ:   diff.NewDiffer(),
	}
}

type loaded struct {
	othr, curr textenc.Text
}

func (m *Merger) load(in Input) (loaded, error) {
	othr, err := m.Loader.Load(in.FileName, in.File)
	if err != nil {
		return loaded{}, loadError(in, err)
	}
	curr, err := m.Loader.Load(in.IntoName, in.Into)
	if err != nil {
		return loaded{}, loadError(in, err)
	}

	if othr.EOL != "" && curr.EOL != "" && othr.EOL != curr.EOL {
		m.Logger.Warn("differing EOL styles",
			zap.String("file", textenc.Name(othr.EOL)),
			zap.String("into", textenc.Name(curr.EOL)))
	}
	return loaded{othr: othr, curr: curr}, nil
}

func loadError(in Input, err error) error {
	return errors.Exit("Cannot merge '%s' into '%s': %v",
		in.label(in.FileName, in.File), in.label(in.IntoName, in.Into), err)
}

// Blocks loads both sides and returns the classified merge blocks without
// assembling any output
func (m *Merger) Blocks(in Input) ([]shared.MergeBlock, error) {
	l, err := m.load(in)
	if err != nil {
		return nil, err
	}
	return Classify(m.Differ.Compare(l.othr.Lines, l.curr.Lines)), nil
}

// Merge applies the changes of the file side to the into side as selected by
// op. True intra-line conflicts are settled by res.
func (m *Merger) Merge(in Input, op shared.MergeOperation, res shared.ConflictResolution) ([]byte, error) {
	l, err := m.load(in)
	if err != nil {
		return nil, err
	}
	blocks := Classify(m.Differ.Compare(l.othr.Lines, l.curr.Lines))
	m.Logger.Debug("classified merge blocks", zap.Int("blocks", len(blocks)), zap.Stringer("operation", op))

	output, err := m.assemble(blocks, op, res)
	if err != nil {
		return nil, err
	}

	eol := m.EOL
	if eol == "" {
		eol = l.othr.EOL
	}
	if eol == "" {
		eol = l.curr.EOL
	}
	if eol == "" {
		eol = textenc.LF
	}

	out, err := textenc.Encode(strings.Join(output, eol), l.curr.Encoding)
	if err != nil {
		return nil, errors.Exit("Cannot encode merge result as %s: %v", l.curr.Encoding, err)
	}
	return out, nil
}

func (m *Merger) assemble(blocks []shared.MergeBlock, op shared.MergeOperation, res shared.ConflictResolution) ([]string, error) {
	insert, remove := op.Has(shared.MergeInsert), op.Has(shared.MergeRemove)

	var output []string
	for _, block := range blocks {
		switch block.Tipe {
		case shared.KEEP:
			output = append(output, block.Lines...)

		case shared.INSERT:
			if !remove {
				output = append(output, block.Lines...)
			}

		case shared.REMOVE:
			if insert {
				output = append(output, block.Lines...)
			}

		case shared.REPLACE:
			if insert {
				output = append(output, replaced(block)...)
			}
			if !remove {
				output = append(output, block.Lines...)
			}

		case shared.MODIFY:
			lines, err := m.modify(block, insert, remove, res)
			if err != nil {
				return nil, err
			}
			output = append(output, lines...)
		}
	}
	return output, nil
}

func (m *Merger) modify(block shared.MergeBlock, insert, remove bool, res shared.ConflictResolution) ([]string, error) {
	switch {
	case changeType(block.Changes) == shared.INSERT:
		if insert {
			return block.Lines, nil
		}
		return replaced(block), nil

	case block.Replaces != nil && changeType(block.Replaces.Changes) == shared.REMOVE:
		if remove {
			return block.Lines, nil
		}
		return replaced(block), nil

	case changeType(block.Changes) == shared.MODIFY:
		return m.resolve(block, res)
	}

	m.Logger.Warn("investigate this case", zap.Int("line", block.Line), zap.Strings("lines", block.Lines))
	return block.Lines, nil
}

func (m *Merger) resolve(block shared.MergeBlock, res shared.ConflictResolution) ([]string, error) {
	switch res {
	case shared.Theirs:
		return replaced(block), nil
	case shared.Mine:
		return block.Lines, nil
	case shared.Next:
		m.Logger.Warn("intra-line merge is not implemented", zap.Int("line", block.Line))
		return replaced(block), nil
	}

	choice, err := m.Prompter.Choose(block)
	if err != nil {
		return nil, fmt.Errorf("prompting for conflict at line %d: %w", block.Line, err)
	}
	switch choice {
	case ChoiceTheirs:
		return replaced(block), nil
	case ChoiceNext:
		m.Logger.Warn("intra-line merge is not implemented", zap.Int("line", block.Line))
		return replaced(block), nil
	case ChoiceManual:
		m.Logger.Warn("manual conflict editing is not implemented", zap.Int("line", block.Line))
		return nil, nil
	}
	return block.Lines, nil
}

func replaced(block shared.MergeBlock) []string {
	if block.Replaces == nil {
		return nil
	}
	return block.Replaces.Lines
}

// changeType is KEEP when no markers were recorded
func changeType(r *shared.Range) shared.MergeBlockType {
	if r == nil {
		return shared.KEEP
	}
	return r.Tipe
}
