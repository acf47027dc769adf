package cpp

import (
	"strings"
	"unicode"

	"github.com/ppstep/ppstep/internal/pptok"
)

// lexer tokenizes one source file's text into pptok.Token values,
// splitting physical lines joined by a trailing backslash into one
// logical line (the only line-splicing rule this preprocessor needs
// to get right before anything else can be tokenized).
type lexer struct {
	file  string
	lines []string
	line  int // 0-based index into lines of the line currently being scanned
	col   int // 0-based byte offset into lines[line]
}

func newLexer(file, text string) *lexer {
	return &lexer{file: file, lines: spliceContinuations(text)}
}

// spliceContinuations joins any physical line ending in a lone
// backslash with the line that follows it, matching how a real
// preprocessor's phase-2 translation works.
func spliceContinuations(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		line := raw[i]
		for strings.HasSuffix(line, "\\") && i+1 < len(raw) {
			line = line[:len(line)-1] + raw[i+1]
			i++
		}
		out = append(out, line)
	}
	return out
}

func (l *lexer) pos() pptok.Pos {
	return pptok.Pos{File: l.file, Line: l.line + 1, Col: l.col + 1}
}

func (l *lexer) eof() bool { return l.line >= len(l.lines) }

// atLineStart reports whether the scanner is positioned at column 0 of
// its current line, used to decide whether a '#' introduces a
// directive.
func (l *lexer) atLineStart() bool { return l.col == 0 }

func (l *lexer) currentLine() string {
	if l.eof() {
		return ""
	}
	return l.lines[l.line]
}

func (l *lexer) advanceLine() {
	l.line++
	l.col = 0
}

func (l *lexer) skipLine() {
	l.advanceLine()
}

// next returns the next token, or a Kind: EOF token once every line
// has been consumed. Newlines are folded into Whitespace tokens so
// the logical-line-oriented directive check above can still see them
// when scanning raw text, but they never surface to hooks as their
// own token kind.
func (l *lexer) next() pptok.Token {
	for {
		if l.eof() {
			return pptok.Token{Kind: pptok.EOF, Pos: l.pos()}
		}
		line := l.currentLine()
		if l.col >= len(line) {
			l.advanceLine()
			return pptok.Token{Value: "\n", Kind: pptok.Whitespace, Pos: l.pos()}
		}
		start := l.col
		c := line[l.col]

		switch {
		case c == ' ' || c == '\t' || c == '\r':
			for l.col < len(line) && (line[l.col] == ' ' || line[l.col] == '\t' || line[l.col] == '\r') {
				l.col++
			}
			return pptok.Token{Value: line[start:l.col], Kind: pptok.Whitespace, Pos: l.pos()}

		case strings.HasPrefix(line[l.col:], "//"):
			text := line[l.col:]
			l.col = len(line)
			return pptok.Token{Value: text, Kind: pptok.Whitespace, Pos: l.pos()}

		case isIdentStart(c):
			for l.col < len(line) && isIdentCont(line[l.col]) {
				l.col++
			}
			return pptok.Token{Value: line[start:l.col], Kind: pptok.Identifier, Pos: l.pos()}

		case c >= '0' && c <= '9':
			for l.col < len(line) && (isIdentCont(line[l.col]) || line[l.col] == '.') {
				l.col++
			}
			return pptok.Token{Value: line[start:l.col], Kind: pptok.Other, Pos: l.pos()}

		case c == '"' || c == '\'':
			quote := c
			l.col++
			for l.col < len(line) && line[l.col] != quote {
				if line[l.col] == '\\' && l.col+1 < len(line) {
					l.col++
				}
				l.col++
			}
			if l.col < len(line) {
				l.col++
			}
			return pptok.Token{Value: line[start:l.col], Kind: pptok.Other, Pos: l.pos()}

		default:
			l.col++
			// A handful of two-character operators the conditional
			// expression evaluator (eval.go) needs to recognize whole.
			for _, op := range []string{"==", "!=", "<=", ">=", "&&", "||", "<<", ">>"} {
				if start+2 <= len(line) && line[start:start+2] == op {
					l.col = start + 2
					break
				}
			}
			return pptok.Token{Value: line[start:l.col], Kind: pptok.Other, Pos: l.pos()}
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentCont(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || (c >= '0' && c <= '9')
}
