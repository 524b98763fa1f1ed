// Package diff computes line diffs between a buggy unit and its repair,
// using the sergi/go-diff engine.
package diff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines kept around a change.
const DefaultContext = 3

// LineType represents the type of diff line
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is a single line of a hunk.
type Line struct {
	Type    LineType
	Content string
}

// Hunk is a group of nearby changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Patch is the line diff of one file.
type Patch struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
	Added   int
	Removed int
}

// operation is one line of the flattened diff. oldIdx and newIdx are the
// 0-based positions in each side at which the line sits.
type operation struct {
	typ     LineType
	oldIdx  int
	newIdx  int
	content string
}

// Compute diffs oldContent against newContent line by line.
func Compute(oldPath, newPath, oldContent, newContent string) *Patch {
	p := &Patch{OldPath: oldPath, NewPath: newPath}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	// Line-level reduction avoids newline boundary artifacts.
	a, b, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	ops := toOperations(diffs)
	for _, op := range ops {
		switch op.typ {
		case LineAdded:
			p.Added++
		case LineRemoved:
			p.Removed++
		}
	}
	p.Hunks = groupHunks(ops, DefaultContext)
	return p
}

func toOperations(diffs []diffmatchpatch.Diff) []operation {
	var ops []operation
	oldIdx, newIdx := 0, 0

	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		if lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		for _, line := range lines {
			op := operation{oldIdx: oldIdx, newIdx: newIdx, content: line}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				op.typ = LineContext
				oldIdx++
				newIdx++
			case diffmatchpatch.DiffDelete:
				op.typ = LineRemoved
				oldIdx++
			case diffmatchpatch.DiffInsert:
				op.typ = LineAdded
				newIdx++
			}
			ops = append(ops, op)
		}
	}
	return ops
}

// groupHunks cuts ops into hunks. Changes separated by at most 2*context
// unchanged lines share a hunk.
func groupHunks(ops []operation, context int) []Hunk {
	var hunks []Hunk
	i := 0
	for i < len(ops) {
		for i < len(ops) && ops[i].typ == LineContext {
			i++
		}
		if i == len(ops) {
			break
		}

		start := max(0, i-context)
		end := i
		for j := i; j < len(ops); j++ {
			if ops[j].typ != LineContext {
				end = j + 1
				continue
			}
			if j-end+1 > 2*context {
				break
			}
		}
		stop := min(len(ops), end+context)

		hunks = append(hunks, newHunk(ops[start:stop]))
		i = stop
	}
	return hunks
}

func newHunk(ops []operation) Hunk {
	h := Hunk{
		OldStart: ops[0].oldIdx + 1,
		NewStart: ops[0].newIdx + 1,
		Lines:    make([]Line, 0, len(ops)),
	}
	for _, op := range ops {
		h.Lines = append(h.Lines, Line{Type: op.typ, Content: op.content})
		if op.typ != LineAdded {
			h.OldCount++
		}
		if op.typ != LineRemoved {
			h.NewCount++
		}
	}
	// An empty side is addressed by the line before it.
	if h.OldCount == 0 {
		h.OldStart--
	}
	if h.NewCount == 0 {
		h.NewStart--
	}
	return h
}

// Empty reports whether both sides are identical.
func (p *Patch) Empty() bool {
	return p == nil || len(p.Hunks) == 0
}

// Stat returns a compact "+added/-removed" summary.
func (p *Patch) Stat() string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("+%d/-%d", p.Added, p.Removed)
}

// Unified renders the patch in unified diff format. An empty patch renders
// as the empty string.
func (p *Patch) Unified() string {
	if p.Empty() {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", p.OldPath, p.NewPath)
	for _, h := range p.Hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				sb.WriteByte('+')
			case LineRemoved:
				sb.WriteByte('-')
			default:
				sb.WriteByte(' ')
			}
			sb.WriteString(l.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// MarshalJSON emits the counts and the unified text rather than raw hunks.
func (p *Patch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OldPath string `json:"old_path"`
		NewPath string `json:"new_path"`
		Added   int    `json:"added"`
		Removed int    `json:"removed"`
		Unified string `json:"unified"`
	}{p.OldPath, p.NewPath, p.Added, p.Removed, p.Unified()})
}
