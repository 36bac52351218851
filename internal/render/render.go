// Package render prints change sets, deltas and merge blocks for the terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"sos/shared/types"
	"sos/shared/utils"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/term"
)

const defaultWidth = 80

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Renderer writes display output, cutting lines to the terminal width
type Renderer struct {
	Out   io.Writer
	Width int // 0 disables truncation
}

// New creates a renderer sized to out when it is a terminal
func New(out io.Writer) *Renderer {
	return &Renderer{Out: out, Width: detectWidth(out)}
}

func detectWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok && f != nil {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			if w, _, err := term.GetSize(fd); err == nil && w > 0 {
				return w
			}
		}
	}
	if cols := strings.TrimSpace(os.Getenv("COLUMNS")); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 0 {
			return n
		}
	}
	return defaultWidth
}

func (r *Renderer) line(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if r.Width > 0 {
		text = runewidth.Truncate(text, r.Width, "…")
	}
	fmt.Fprintln(r.Out, text)
}

// ChangeSet prints one line per changed path, grouped by kind
func (r *Renderer) ChangeSet(cs shared.ChangeSet) {
	if cs.Empty() {
		r.line("No changes")
		return
	}
	for _, path := range utils.SortedKeys(cs.Additions) {
		r.line("%s %s", green("A"), path)
	}
	for _, path := range utils.SortedKeys(cs.Modifications) {
		r.line("%s %s", yellow("M"), path)
	}
	for _, path := range utils.SortedKeys(cs.Deletions) {
		r.line("%s %s", red("D"), path)
	}
}

// Delta prints the output of a line differ with colored prefixes
func (r *Renderer) Delta(lines []string) {
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "- "):
			r.line("%s", red(l))
		case strings.HasPrefix(l, "+ "):
			r.line("%s", green(l))
		case strings.HasPrefix(l, "? "):
			r.line("%s", cyan(l))
		default:
			r.line("%s", l)
		}
	}
}

// Blocks prints classified merge blocks. Changed line pairs show their
// differing characters highlighted.
func (r *Renderer) Blocks(blocks []shared.MergeBlock) {
	for _, b := range blocks {
		r.line("%s %s", bold(fmt.Sprintf("@%d", b.Line)), blue(b.Tipe.String()))
		switch b.Tipe {
		case shared.KEEP:
			for _, l := range b.Lines {
				r.line("  %s", l)
			}
		case shared.INSERT:
			for _, l := range b.Lines {
				r.line("%s %s", green("+"), l)
			}
		case shared.REMOVE:
			for _, l := range b.Lines {
				r.line("%s %s", red("-"), l)
			}
		case shared.REPLACE, shared.MODIFY:
			var old []string
			if b.Replaces != nil {
				old = b.Replaces.Lines
			}
			for i := 0; i < len(old) || i < len(b.Lines); i++ {
				switch {
				case i < len(old) && i < len(b.Lines):
					before, after := Highlight(old[i], b.Lines[i])
					r.line("%s %s", red("-"), before)
					r.line("%s %s", green("+"), after)
				case i < len(old):
					r.line("%s %s", red("-"), old[i])
				default:
					r.line("%s %s", green("+"), b.Lines[i])
				}
			}
		}
	}
}

// Highlight marks the characters removed from before and inserted into after
func Highlight(before, after string) (string, string) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	var ob, ab strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			ob.WriteString(d.Text)
			ab.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			ob.WriteString(red(d.Text))
		case diffmatchpatch.DiffInsert:
			ab.WriteString(green(d.Text))
		}
	}
	return ob.String(), ab.String()
}

// Log prints revisions newest first
func (r *Renderer) Log(commits []shared.CommitInfo) {
	for i := len(commits) - 1; i >= 0; i-- {
		c := commits[i]
		msg := ""
		if c.Message != nil {
			msg = *c.Message
		}
		ts := time.UnixMilli(c.CTime).Format("2006-01-02 15:04:05")
		r.line("%s  %s  %s", yellow(fmt.Sprintf("r%d", c.Number)), ts, msg)
	}
}

// Branches prints all branches and marks the current one
func (r *Renderer) Branches(branches []shared.BranchInfo, current int) {
	for _, b := range branches {
		marker := " "
		if b.Number == current {
			marker = green("*")
		}
		state := ""
		if !b.InSync {
			state = red(" (out of sync)")
		}
		tracked := ""
		if len(b.Tracked) > 0 {
			tracked = "  tracking " + strings.Join(b.Tracked, ", ")
		}
		r.line("%s b%d %s%s%s", marker, b.Number, b.Label(), state, tracked)
	}
}
