// Package discord adapts assistant replies to Discord's message
// constraints. Discord renders Markdown natively but caps messages at
// 2000 characters, so long replies are split into chunks that never
// break inside a fenced code block.
package discord

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// MessageLimit is Discord's maximum message length.
const MessageLimit = 2000

// fenceInfo marks the lines belonging to one fenced code block,
// including the fence markers themselves.
type fenceInfo struct {
	firstLine int
	lastLine  int
	lang      string
}

// SplitMessage splits Markdown into chunks of at most limit characters.
// Chunks break on line boundaries; when a fenced code block must span
// chunks, the fence is closed and reopened with its language so each
// chunk renders correctly on its own.
func SplitMessage(md string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}
	if md == "" {
		return nil
	}
	if len(md) <= limit {
		return []string{md}
	}

	lines := strings.Split(md, "\n")
	fences := findFences([]byte(md), lines)

	var (
		chunks []string
		cur    strings.Builder
		// language of the fence the current chunk is inside, or "" when
		// outside any fence; closed is what flushing must append.
		openLang string
		inFence  bool
	)
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		s := cur.String()
		if inFence {
			s += "\n```"
		}
		chunks = append(chunks, strings.TrimRight(s, "\n"))
		cur.Reset()
		if inFence {
			cur.WriteString("```" + openLang + "\n")
		}
	}

	for i, line := range lines {
		f := fenceAt(fences, i)

		for _, piece := range splitLongLine(line, limit-8) {
			// +1 for the joining newline, +4 for a possible closing fence.
			needed := len(piece) + 1
			if inFence {
				needed += 4
			}
			if cur.Len()+needed > limit {
				flush()
			}
			if cur.Len() > 0 && !strings.HasSuffix(cur.String(), "\n") {
				cur.WriteByte('\n')
			}
			cur.WriteString(piece)
		}

		// State flips after the fence marker line itself is written, so
		// a flush on the marker line never closes a fence that is not
		// open in the current chunk.
		if f != nil {
			if i == f.firstLine {
				inFence, openLang = true, f.lang
			}
			if i == f.lastLine {
				inFence, openLang = false, ""
			}
		}
	}
	if cur.Len() > 0 {
		chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
	}
	return chunks
}

// Split splits at Discord's limit.
func Split(md string) []string {
	return SplitMessage(md, MessageLimit)
}

// findFences parses the Markdown and maps every fenced code block to its
// line range. Using the parser rather than scanning for "```" keeps
// inline code spans and indented examples from being mistaken for
// fences.
func findFences(source []byte, lines []string) []fenceInfo {
	lineStarts := make([]int, len(lines))
	off := 0
	for i, l := range lines {
		lineStarts[i] = off
		off += len(l) + 1
	}
	lineFor := func(byteOff int) int {
		lo, hi := 0, len(lineStarts)-1
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if lineStarts[mid] <= byteOff {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		return lo
	}

	gm := goldmark.New(goldmark.WithExtensions(extension.Strikethrough))
	doc := gm.Parser().Parse(text.NewReader(source))

	var fences []fenceInfo
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok || fcb.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		first := lineFor(fcb.Lines().At(0).Start) - 1
		last := lineFor(fcb.Lines().At(fcb.Lines().Len()-1).Stop-1) + 1
		if first < 0 {
			first = 0
		}
		if last >= len(lines) {
			last = len(lines) - 1
		}
		fences = append(fences, fenceInfo{
			firstLine: first,
			lastLine:  last,
			lang:      string(fcb.Language(source)),
		})
		return ast.WalkSkipChildren, nil
	})
	return fences
}

func fenceAt(fences []fenceInfo, line int) *fenceInfo {
	for i := range fences {
		if line >= fences[i].firstLine && line <= fences[i].lastLine {
			return &fences[i]
		}
	}
	return nil
}

// splitLongLine hard-splits a single line that exceeds the budget,
// keeping rune boundaries intact.
func splitLongLine(line string, budget int) []string {
	if budget <= 0 || len(line) <= budget {
		return []string{line}
	}
	var out []string
	runes := []rune(line)
	for len(runes) > 0 {
		n := len(runes)
		if n > budget {
			n = budget
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
