// Copyright 2025 The Kube Resource Orchestrator Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transform

import (
	"bytes"
	"regexp"

	"github.com/kubernetes-sigs/jsbundle/pkg/graph"
)

var consoleCallRegex = regexp.MustCompile(`(?:^|[;{}])[ \t]*(console\.[A-Za-z]+[ \t]*\()`)

// MinifyOptions configures Minify.
type MinifyOptions struct {
	// DropConsole removes console calls made as statements of their own.
	DropConsole bool
}

// Minify strips comments, indentation, trailing whitespace and blank lines.
// Line breaks between statements are kept so automatic semicolon insertion
// behaves as before; the contents of multi-line template literals are
// left as they are.
func Minify(opts MinifyOptions) Func {
	return func(_ string, src []byte) ([]byte, error) {
		code := graph.StripComments(src)

		var out bytes.Buffer
		out.Grow(len(code))
		for _, l := range splitLines(code) {
			text := l.text
			if !l.startsInLiteral {
				text = bytes.TrimLeft(text, " \t\r")
			}
			if !l.endsInLiteral {
				text = bytes.TrimRight(text, " \t\r")
			}
			literal := l.startsInLiteral || l.endsInLiteral
			if !literal && len(text) == 0 {
				continue
			}
			if !literal && opts.DropConsole {
				text = bytes.TrimSpace(dropConsole(text))
				if len(text) == 0 {
					continue
				}
			}
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.Write(text)
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		return out.Bytes(), nil
	}
}

type line struct {
	text            []byte
	startsInLiteral bool
	endsInLiteral   bool
}

// splitLines splits comment-free code into lines, noting which line breaks
// fall inside a template literal.
func splitLines(code []byte) []line {
	var lines []line
	var quote byte
	start := 0
	startsInLiteral := false

	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case quote != 0 && c == '\\':
			i++
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '\'' || c == '"' || c == '`'):
			quote = c
		case c == '\n':
			if quote != 0 && quote != '`' {
				quote = 0
			}
			lines = append(lines, line{
				text:            code[start:i],
				startsInLiteral: startsInLiteral,
				endsInLiteral:   quote == '`',
			})
			startsInLiteral = quote == '`'
			start = i + 1
		}
	}
	if start < len(code) {
		lines = append(lines, line{text: code[start:], startsInLiteral: startsInLiteral})
	}
	return lines
}

// dropConsole removes the console call statements of a line that open and
// close on it. Calls used as expressions are kept.
func dropConsole(text []byte) []byte {
	blank := graph.StripLiterals(text)
	var out []byte
	last := 0
	for _, loc := range consoleCallRegex.FindAllSubmatchIndex(blank, -1) {
		if loc[2] < last {
			continue
		}
		end := closingParen(blank, loc[3]-1)
		if end < 0 {
			continue
		}
		rest := end + 1
		for rest < len(blank) && (blank[rest] == ' ' || blank[rest] == '\t') {
			rest++
		}
		switch {
		case rest == len(blank):
		case blank[rest] == ';':
			rest++
			for rest < len(blank) && (blank[rest] == ' ' || blank[rest] == '\t') {
				rest++
			}
		case blank[rest] == '}':
		default:
			continue
		}
		out = append(out, text[last:loc[2]]...)
		last = rest
	}
	if last == 0 {
		return text
	}
	return append(out, text[last:]...)
}

// closingParen returns the offset of the parenthesis closing the one at
// open, or -1.
func closingParen(code []byte, open int) int {
	depth := 0
	for i := open; i < len(code); i++ {
		switch code[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
