// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transform turns unstructured plain text into a LaTeX document.
// Paragraphs are separated by blank lines; a paragraph whose first line
// starts with "1." becomes an enumerate list and one starting with "-", "*"
// or "•" becomes an itemize list. Everything else passes through unchanged.
package transform

import (
	"regexp"
	"strings"
)

// Kind classifies a block of text.
type Kind int

const (
	Plain Kind = iota
	NumberedList
	BulletList
)

func (k Kind) String() string {
	switch k {
	case NumberedList:
		return "numbered"
	case BulletList:
		return "bullet"
	default:
		return "plain"
	}
}

const preamble = `\documentclass[a4paper]{article}
\usepackage[a4paper, margin=1in]{geometry}
\usepackage{amsmath}

\begin{document}

\section{Document}

`

const postamble = `

\end{document}`

var (
	blankLinePattern = regexp.MustCompile(`\n{2,}`)
	numberedPattern  = regexp.MustCompile(`^\d+\.`)
	numberedPrefix   = regexp.MustCompile(`^\d+\.\s*`)
	bulletPattern    = regexp.MustCompile(`^[-*•]`)
	bulletPrefix     = regexp.MustCompile(`^[-*•]\s*`)
)

// Block is one paragraph of input text.
type Block struct {
	Kind Kind

	// Text is the trimmed paragraph as it appeared in the input.
	Text string
}

// Lines returns the non-blank lines of the block, trimmed. Trimming happens
// before list markers are matched, so an indented "   2. b" still renders as
// "\item b".
func (b Block) Lines() []string {
	var lines []string
	for _, line := range strings.Split(b.Text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Render returns the LaTeX for the block.
func (b Block) Render() string {
	switch b.Kind {
	case NumberedList:
		return renderList("enumerate", numberedPrefix, b.Lines())
	case BulletList:
		return renderList("itemize", bulletPrefix, b.Lines())
	default:
		return b.Text
	}
}

func renderList(env string, prefix *regexp.Regexp, lines []string) string {
	var sb strings.Builder
	sb.WriteString(`\begin{` + env + "}\n")
	for _, line := range lines {
		// Lines without a marker are kept verbatim as their own item.
		sb.WriteString(`\item ` + prefix.ReplaceAllString(line, "") + "\n")
	}
	sb.WriteString(`\end{` + env + "}")
	return sb.String()
}

// Split segments text into classified blocks in input order. Blocks are
// separated by one or more blank lines; empty blocks are dropped.
func Split(text string) []Block {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var blocks []Block
	for _, part := range blankLinePattern.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		blocks = append(blocks, Block{Kind: classify(part), Text: part})
	}
	return blocks
}

// classify inspects the first line of a trimmed, non-empty block.
func classify(block string) Kind {
	first, _, _ := strings.Cut(block, "\n")
	switch {
	case numberedPattern.MatchString(first):
		return NumberedList
	case bulletPattern.MatchString(first):
		return BulletList
	default:
		return Plain
	}
}

// Body renders the blocks of text separated by blank lines, without the
// document wrapper.
func Body(text string) string {
	blocks := Split(text)
	rendered := make([]string, len(blocks))
	for i, b := range blocks {
		rendered[i] = b.Render()
	}
	return strings.Join(rendered, "\n\n")
}

// Transform converts plain text into a complete LaTeX document. It is
// deterministic and accepts any input; empty input yields an empty body.
func Transform(text string) string {
	return preamble + Body(text) + postamble
}
