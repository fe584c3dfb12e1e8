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
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kubernetes-sigs/jsbundle/pkg/graph"
)

// Statement patterns. Group 1 is the span that gets replaced; the leading
// statement boundary is matched but kept.
var (
	esmImportFrom = regexp.MustCompile(
		`(?m)(?:^|[;}])[ \t]*(import\s*(` + graph.ImportClausePattern + `)\s*from\s*["']([^"'\n]+)["'])`)
	esmImportBare = regexp.MustCompile(
		`(?m)(?:^|[;}])[ \t]*(import\s*["']([^"'\n]+)["'])`)
	esmExportFrom = regexp.MustCompile(
		`(?m)(?:^|[;}])[ \t]*(export\s*(` + graph.ExportClausePattern + `)\s*from\s*["']([^"'\n]+)["'])`)
	esmExportDefaultDecl = regexp.MustCompile(
		`(?m)(?:^|[;}])[ \t]*(export\s+default\s+)(?:async\s+)?(?:function\s*\*?\s*([\w$]+)\s*\(|class\s+([\w$]+)\s*(?:extends\b|\{))`)
	esmExportDefault = regexp.MustCompile(
		`(?m)(?:^|[;}])[ \t]*(export\s+default\s+)`)
	esmExportDecl = regexp.MustCompile(
		`(?m)(?:^|[;}])[ \t]*(export\s+)(?:async\s+)?(?:function\s*\*?\s*([\w$]+)|class\s+([\w$]+))`)
	esmExportVar = regexp.MustCompile(
		`(?m)(?:^|[;}])[ \t]*(export\s+)(?:var|let|const)\b`)
	esmExportList = regexp.MustCompile(
		`(?m)(?:^|[;}])[ \t]*(export\s*\{([^}]*)\})`)
	esmDynamicImport = regexp.MustCompile(
		`(?:^|[^\w$.])(import)\s*\(`)

	// esmLeftover finds module statements no pattern lowered.
	esmLeftover = regexp.MustCompile(
		`(?m)(?:^|[;{}])[ \t]*((?:export|import)\b\s*[\w$*{"'])`)
	identifierRegex = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
)

const esmStarHelper = `function __jsbundle_star(e, m) { Object.keys(m).forEach(function (k) { ` +
	`if (k !== "default" && !Object.prototype.hasOwnProperty.call(e, k)) ` +
	`Object.defineProperty(e, k, { enumerable: true, get: function () { return m[k]; } }); }); }` + "\n"

type binding struct {
	local  string
	remote string
}

type esmMatch struct {
	start, end int
	// tail is the end of the whole statement match.
	tail   int
	kind   int
	groups []string
}

const (
	kindImportFrom = iota
	kindImportBare
	kindExportFrom
	kindExportDefaultDecl
	kindExportDefault
	kindExportDecl
	kindExportVar
	kindExportList
	kindDynamicImport
)

// LowerESM rewrites ES module syntax to the CommonJS shape the runtime
// executes: imports become require calls, exports become getters on the
// exports object defined before the module body runs, and dynamic
// import() becomes require.dynamic(), which returns a promise.
func LowerESM() Func {
	patterns := []*regexp.Regexp{
		kindImportFrom:        esmImportFrom,
		kindImportBare:        esmImportBare,
		kindExportFrom:        esmExportFrom,
		kindExportDefaultDecl: esmExportDefaultDecl,
		kindExportDefault:     esmExportDefault,
		kindExportDecl:        esmExportDecl,
		kindExportVar:         esmExportVar,
		kindExportList:        esmExportList,
		kindDynamicImport:     esmDynamicImport,
	}

	return func(_ string, src []byte) ([]byte, error) {
		code := graph.StripComments(src)

		var matches []esmMatch
		for kind, re := range patterns {
			for _, loc := range re.FindAllSubmatchIndex(code, -1) {
				m := esmMatch{start: loc[2], end: loc[3], tail: loc[1], kind: kind}
				for g := 2; g*2+1 < len(loc); g++ {
					if loc[g*2] < 0 {
						m.groups = append(m.groups, "")
						continue
					}
					m.groups = append(m.groups, string(code[loc[g*2]:loc[g*2+1]]))
				}
				matches = append(matches, m)
			}
		}
		if len(matches) == 0 {
			if err := checkLowered(src); err != nil {
				return nil, err
			}
			return src, nil
		}
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

		l := &lowering{literals: graph.StripLiterals(src)}
		var body bytes.Buffer
		body.Grow(len(src))
		last := 0
		for _, m := range matches {
			if m.start < last {
				continue
			}
			replacement, err := l.lower(m)
			if err != nil {
				return nil, err
			}
			body.Write(src[last:m.start])
			body.WriteString(replacement)
			last = m.end
		}
		body.Write(src[last:])
		if err := checkLowered(body.Bytes()); err != nil {
			return nil, err
		}

		if !l.module {
			return body.Bytes(), nil
		}
		var out bytes.Buffer
		out.Grow(body.Len() + 256)
		out.WriteString("Object.defineProperty(exports, \"__esModule\", { value: true });\n")
		for _, e := range l.exports {
			fmt.Fprintf(&out, "Object.defineProperty(exports, %q, { enumerable: true, get: function () { return %s; } });\n", e.remote, e.local)
		}
		if l.star {
			out.WriteString(esmStarHelper)
		}
		out.Write(body.Bytes())
		return out.Bytes(), nil
	}
}

// lowering accumulates the state of one module.
type lowering struct {
	// literals is the source with comments and literal contents blanked.
	literals []byte
	temps    int
	// exports binds an exported name (remote) to the expression it reads.
	exports []binding
	module  bool
	star    bool
}

func (l *lowering) temp() string {
	name := fmt.Sprintf("__esm%d", l.temps)
	l.temps++
	return name
}

func (l *lowering) export(name, expr string) {
	l.module = true
	l.exports = append(l.exports, binding{local: expr, remote: name})
}

func interop(tmp string) string {
	return fmt.Sprintf("%s && %s.__esModule ? %s.default : %s", tmp, tmp, tmp, tmp)
}

func (l *lowering) lower(m esmMatch) (string, error) {
	switch m.kind {
	case kindImportFrom:
		def, ns, named, err := parseImportClause(m.groups[0])
		if err != nil {
			return "", err
		}
		spec := m.groups[1]
		if def == "" && len(named) == 0 && ns != "" {
			return fmt.Sprintf("var %s = require(%q)", ns, spec), nil
		}
		tmp := l.temp()
		parts := []string{fmt.Sprintf("var %s = require(%q)", tmp, spec)}
		if ns != "" {
			parts = append(parts, fmt.Sprintf("%s = %s", ns, tmp))
		}
		if def != "" {
			parts = append(parts, fmt.Sprintf("%s = %s", def, interop(tmp)))
		}
		for _, b := range named {
			parts = append(parts, fmt.Sprintf("%s = %s", b.local, memberOf(tmp, b.remote)))
		}
		return strings.Join(parts, ", "), nil

	case kindImportBare:
		return fmt.Sprintf("require(%q)", m.groups[0]), nil

	case kindExportFrom:
		clause, spec := strings.TrimSpace(m.groups[0]), m.groups[1]
		l.module = true
		if clause == "*" {
			l.star = true
			return fmt.Sprintf("__jsbundle_star(exports, require(%q))", spec), nil
		}
		tmp := l.temp()
		if strings.HasPrefix(clause, "*") {
			fields := strings.Fields(strings.TrimPrefix(clause, "*"))
			if len(fields) != 2 || fields[0] != "as" {
				return "", fmt.Errorf("unsupported export clause %q", clause)
			}
			l.export(fields[1], tmp)
			return fmt.Sprintf("var %s = require(%q)", tmp, spec), nil
		}
		bindings, err := parseBindings(clause)
		if err != nil {
			return "", err
		}
		for _, b := range bindings {
			// In re-exports the local name is the one imported from spec.
			if b.local == "default" {
				l.export(b.remote, "("+interop(tmp)+")")
				continue
			}
			l.export(b.remote, memberOf(tmp, b.local))
		}
		return fmt.Sprintf("var %s = require(%q)", tmp, spec), nil

	case kindExportDefaultDecl:
		name := firstNonEmpty(m.groups...)
		l.export("default", name)
		return "", nil

	case kindExportDefault:
		l.module = true
		return "exports.default = ", nil

	case kindExportDecl:
		name := firstNonEmpty(m.groups...)
		l.export(name, name)
		return "", nil

	case kindExportVar:
		names, err := declaredNames(l.literals, m.tail)
		if err != nil {
			return "", err
		}
		l.module = true
		for _, name := range names {
			l.export(name, name)
		}
		return "", nil

	case kindExportList:
		bindings, err := parseBindings("{" + m.groups[0] + "}")
		if err != nil {
			return "", err
		}
		l.module = true
		for _, b := range bindings {
			l.export(b.remote, b.local)
		}
		return "", nil

	case kindDynamicImport:
		return "require.dynamic", nil
	}
	return "", fmt.Errorf("unknown statement kind %d", m.kind)
}

// parseImportClause splits `def, * as ns` or `def, { a, b as c }`.
func parseImportClause(clause string) (def, ns string, named []binding, err error) {
	clause = strings.TrimSpace(clause)
	if i := strings.Index(clause, "{"); i >= 0 {
		j := strings.LastIndex(clause, "}")
		if j < i {
			return "", "", nil, fmt.Errorf("malformed import clause %q", clause)
		}
		named, err = parseBindings(clause[i : j+1])
		if err != nil {
			return "", "", nil, err
		}
		// For imports, local is the remote name and remote the alias; swap
		// so local is the variable declared in this module.
		for k := range named {
			named[k] = binding{local: named[k].remote, remote: named[k].local}
		}
		clause = clause[:i] + clause[j+1:]
	}
	for _, part := range strings.Split(clause, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case strings.HasPrefix(part, "*"):
			fields := strings.Fields(strings.TrimPrefix(part, "*"))
			if len(fields) != 2 || fields[0] != "as" {
				return "", "", nil, fmt.Errorf("malformed namespace import %q", part)
			}
			ns = fields[1]
		default:
			if strings.ContainsAny(part, " \t\n") {
				return "", "", nil, fmt.Errorf("malformed default import %q", part)
			}
			def = part
		}
	}
	return def, ns, named, nil
}

// parseBindings parses `{ a, b as c }` into {local: a, remote: a} and
// {local: b, remote: c}.
func parseBindings(list string) ([]binding, error) {
	list = strings.TrimSpace(list)
	list = strings.TrimPrefix(list, "{")
	list = strings.TrimSuffix(list, "}")

	var bindings []binding
	for _, item := range strings.Split(list, ",") {
		fields := strings.Fields(item)
		switch {
		case len(fields) == 0:
		case len(fields) == 1:
			bindings = append(bindings, binding{local: fields[0], remote: fields[0]})
		case len(fields) == 3 && fields[1] == "as":
			bindings = append(bindings, binding{local: fields[0], remote: fields[2]})
		default:
			return nil, fmt.Errorf("malformed binding %q", strings.TrimSpace(item))
		}
	}
	return bindings, nil
}

func memberOf(obj, name string) string {
	return fmt.Sprintf("%s[%q]", obj, name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// checkLowered fails on import or export statements left in lowered code;
// the runtime evaluates modules as function bodies, where they are
// syntax errors.
func checkLowered(code []byte) error {
	loc := esmLeftover.FindSubmatchIndex(graph.StripLiterals(code))
	if loc == nil {
		return nil
	}
	line := code[loc[2]:]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return fmt.Errorf("unsupported module syntax %q", strings.TrimSpace(string(line)))
}

// declaredNames returns the names bound by the declarator list of a var,
// let or const statement whose first declarator starts at or after i.
func declaredNames(code []byte, i int) ([]string, error) {
	var names []string
	for {
		i = skipSpace(code, i)
		end := patternEnd(code, i)
		if end == i {
			return nil, fmt.Errorf("malformed export declaration %q", firstLine(code[i:]))
		}
		bound, err := patternNames(string(code[i:end]))
		if err != nil {
			return nil, err
		}
		names = append(names, bound...)
		comma, more := declaratorEnd(code, end)
		if !more {
			return names, nil
		}
		i = comma + 1
	}
}

func firstLine(code []byte) string {
	if i := bytes.IndexByte(code, '\n'); i >= 0 {
		code = code[:i]
	}
	return strings.TrimSpace(string(code))
}

func skipSpace(code []byte, i int) int {
	for i < len(code) && isSpace(code[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// patternEnd returns the end of the identifier or bracketed binding
// pattern at i, or i when there is none.
func patternEnd(code []byte, i int) int {
	if i >= len(code) {
		return i
	}
	if code[i] != '{' && code[i] != '[' {
		j := i
		for j < len(code) && isIdentChar(code[j]) {
			j++
		}
		return j
	}
	depth := 0
	for j := i; j < len(code); j++ {
		switch code[j] {
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return i
}

// declaratorEnd skips the initializer following a binding pattern. It
// returns the offset of the comma introducing the next declarator and
// true, or the end of the statement and false.
func declaratorEnd(code []byte, i int) (int, bool) {
	depth := 0
	for ; i < len(code); i++ {
		switch code[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return i, false
			}
			depth--
		case ',':
			if depth == 0 {
				return i, true
			}
		case ';':
			if depth == 0 {
				return i, false
			}
		case '\n':
			if depth == 0 && !continues(code, i) {
				return i, false
			}
		}
	}
	return i, false
}

// continues reports whether the line broken at the newline i carries on
// in the next line instead of ending the statement.
func continues(code []byte, i int) bool {
	prev := i - 1
	for prev >= 0 && isSpace(code[prev]) {
		prev--
	}
	if prev >= 0 && strings.IndexByte(",=+-*/%&|^!?:<>.(", code[prev]) >= 0 {
		return true
	}
	next := skipSpace(code, i)
	return next < len(code) && strings.IndexByte(",.?:*/%&|^=<>", code[next]) >= 0
}

// patternNames returns the identifiers declared by an identifier, object
// pattern or array pattern.
func patternNames(pattern string) ([]string, error) {
	pattern = strings.TrimSpace(pattern)
	if identifierRegex.MatchString(pattern) {
		return []string{pattern}, nil
	}
	object := strings.HasPrefix(pattern, "{") && strings.HasSuffix(pattern, "}")
	array := strings.HasPrefix(pattern, "[") && strings.HasSuffix(pattern, "]")
	if !object && !array {
		return nil, fmt.Errorf("unsupported binding pattern %q", pattern)
	}

	var names []string
	for _, element := range splitTopLevel(pattern[1:len(pattern)-1], ',') {
		element = strings.TrimSpace(element)
		if element == "" {
			continue
		}
		// Defaults may contain colons, so drop them before property keys.
		target, _, _ := cutTopLevel(element, '=')
		if rest, ok := strings.CutPrefix(target, "..."); ok {
			target = rest
		} else if object {
			if _, value, ok := cutTopLevel(target, ':'); ok {
				target = value
			}
		}
		bound, err := patternNames(target)
		if err != nil {
			return nil, err
		}
		names = append(names, bound...)
	}
	return names, nil
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	for {
		before, after, ok := cutTopLevel(s, sep)
		parts = append(parts, before)
		if !ok {
			return parts
		}
		s = after
	}
}

// cutTopLevel is strings.Cut ignoring separators nested in brackets.
func cutTopLevel(s string, sep byte) (before, after string, found bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}
