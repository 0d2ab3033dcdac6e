package manifest

import (
	"bytes"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

// The editor rewrites individual entries of an already validated TOML
// document while leaving every other line untouched. Values are located by a
// line scanner; new values are rendered by go-toml.

type spanKind int

const (
	spanHeader spanKind = iota
	spanKeyValue
)

// span is one header or key/value expression, covering lines [start, end).
type span struct {
	kind  spanKind
	start int
	end   int
	table []string // header path, or the table enclosing a key/value
	key   []string // key/value only
	array bool     // [[array of tables]] header

	indent  string // key/value only: leading whitespace
	keyText string // key/value only: the key as written
	tail    string // key/value only: text after the value on its last line
}

func (s span) path() []string {
	p := make([]string, 0, len(s.table)+len(s.key))
	p = append(p, s.table...)
	return append(p, s.key...)
}

type editor struct {
	lines []string
	nl    string
}

func newEditor(b []byte) *editor {
	e := &editor{nl: "\n"}
	if len(b) == 0 {
		return e
	}
	e.lines = strings.SplitAfter(string(b), "\n")
	if e.lines[len(e.lines)-1] == "" {
		e.lines = e.lines[:len(e.lines)-1]
	}
	if strings.HasSuffix(e.lines[0], "\r\n") {
		e.nl = "\r\n"
	}
	return e
}

func (e *editor) bytes() []byte {
	var buf bytes.Buffer
	for _, l := range e.lines {
		buf.WriteString(l)
	}
	return buf.Bytes()
}

// splice replaces lines [start, end) with repl.
func (e *editor) splice(start, end int, repl []string) {
	e.lines = append(append(e.lines[:start:start], repl...), e.lines[end:]...)
}

// toLines splits rendered text into lines terminated by the document newline.
func (e *editor) toLines(text string) []string {
	text = strings.TrimRight(text, "\n")
	parts := strings.Split(text, "\n")
	for i := range parts {
		parts[i] += e.nl
	}
	return parts
}

func (e *editor) spans() []span {
	var (
		out   []span
		table []string
	)

	for i := 0; i < len(e.lines); i++ {
		line := e.lines[i]
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || trimmed[0] == '#' || trimmed[0] == '\n' || trimmed[0] == '\r' {
			continue
		}

		if trimmed[0] == '[' {
			array := strings.HasPrefix(trimmed, "[[")
			off := 1
			if array {
				off = 2
			}
			keys, _, ok := parseKey(trimmed[off:])
			if !ok {
				continue
			}
			table = keys
			out = append(out, span{kind: spanHeader, start: i, end: i + 1, table: keys, array: array})
			continue
		}

		keys, n, ok := parseKey(trimmed)
		if !ok {
			continue
		}
		rest := trimmed[n:]
		eq := strings.IndexByte(rest, '=')
		if eq < 0 || strings.TrimSpace(rest[:eq]) != "" {
			continue
		}

		indent := line[:len(line)-len(trimmed)]
		valueCol := len(indent) + n + eq + 1
		endLine, endCol := valueExtent(e.lines, i, valueCol)

		out = append(out, span{
			kind:    spanKeyValue,
			start:   i,
			end:     endLine + 1,
			table:   table,
			key:     keys,
			indent:  indent,
			keyText: strings.TrimRight(trimmed[:n], " \t"),
			tail:    e.lines[endLine][endCol:],
		})
		i = endLine
	}

	return out
}

// parseKey parses a (possibly dotted, possibly quoted) key at the start of s.
// It returns the key parts and the number of bytes consumed.
func parseKey(s string) ([]string, int, bool) {
	var keys []string
	pos := 0

	for {
		for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
			pos++
		}
		if pos >= len(s) {
			return nil, 0, false
		}

		switch s[pos] {
		case '"':
			end := pos + 1
			for end < len(s) && s[end] != '"' {
				if s[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(s) {
				return nil, 0, false
			}
			k, err := strconv.Unquote(s[pos : end+1])
			if err != nil {
				return nil, 0, false
			}
			keys = append(keys, k)
			pos = end + 1
		case '\'':
			end := strings.IndexByte(s[pos+1:], '\'')
			if end < 0 {
				return nil, 0, false
			}
			keys = append(keys, s[pos+1:pos+1+end])
			pos += end + 2
		default:
			start := pos
			for pos < len(s) && isBareKeyChar(s[pos]) {
				pos++
			}
			if pos == start {
				return nil, 0, false
			}
			keys = append(keys, s[start:pos])
		}

		dot := pos
		for dot < len(s) && (s[dot] == ' ' || s[dot] == '\t') {
			dot++
		}
		if dot < len(s) && s[dot] == '.' {
			pos = dot + 1
			continue
		}
		return keys, pos, true
	}
}

func isBareKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

type scanState int

const (
	stNormal scanState = iota
	stBasic
	stLiteral
	stMultiBasic
	stMultiLiteral
)

// valueExtent finds where the value starting at lines[line][col] ends.
// It returns the last line of the value and the column just past it.
func valueExtent(lines []string, line, col int) (int, int) {
	depth := 0
	state := stNormal

	for l := line; l < len(lines); l++ {
		s := strings.TrimRight(lines[l], "\r\n")
		j := 0
		if l == line {
			j = col
		}
		end := 0

	scanLine:
		for j < len(s) {
			c := s[j]
			switch state {
			case stNormal:
				switch {
				case c == '#':
					break scanLine
				case strings.HasPrefix(s[j:], `"""`):
					state = stMultiBasic
					j += 3
					end = j
					continue
				case strings.HasPrefix(s[j:], "'''"):
					state = stMultiLiteral
					j += 3
					end = j
					continue
				case c == '"':
					state = stBasic
				case c == '\'':
					state = stLiteral
				case c == '[' || c == '{':
					depth++
				case c == ']' || c == '}':
					depth--
				}
				if c != ' ' && c != '\t' {
					end = j + 1
				}
				j++
			case stBasic:
				if c == '\\' {
					j += 2
					end = j
					continue
				}
				if c == '"' {
					state = stNormal
				}
				j++
				end = j
			case stLiteral:
				if c == '\'' {
					state = stNormal
				}
				j++
				end = j
			case stMultiBasic, stMultiLiteral:
				delim := `"""`
				if state == stMultiLiteral {
					delim = "'''"
				}
				if state == stMultiBasic && c == '\\' {
					j += 2
					end = j
					continue
				}
				if strings.HasPrefix(s[j:], delim) {
					j += 3
					// Up to two quote characters may precede the closing delimiter.
					for extra := 0; extra < 2 && j < len(s) && s[j] == delim[0]; extra++ {
						j++
					}
					state = stNormal
					end = j
					continue
				}
				j++
				end = j
			}
		}

		if end > len(s) {
			end = len(s)
		}
		if state == stNormal && depth <= 0 {
			return l, end
		}
	}

	last := len(lines) - 1
	return last, len(strings.TrimRight(lines[last], "\r\n"))
}

// field is one key of a rendered table, in output order.
type field struct {
	Key   string
	Value any
}

var bareKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func renderKey(k string) (string, error) {
	if bareKey.MatchString(k) {
		return k, nil
	}
	return renderValue(k, false)
}

func renderKeyPath(path []string) (string, error) {
	parts := make([]string, len(path))
	for i, p := range path {
		k, err := renderKey(p)
		if err != nil {
			return "", err
		}
		parts[i] = k
	}
	return strings.Join(parts, "."), nil
}

// renderValue encodes a single TOML value with go-toml.
func renderValue(v any, multiline bool) (string, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetTablesInline(true)
	enc.SetArraysMultiline(multiline)
	enc.SetIndentSymbol("    ")
	if err := enc.Encode(map[string]any{"v": v}); err != nil {
		return "", errors.Wrap(err, "failed to encode value")
	}

	out := strings.TrimRight(buf.String(), "\n")
	_, value, ok := strings.Cut(out, "=")
	if !ok {
		return "", errors.Newf("unexpected encoder output %q", out)
	}
	return strings.TrimSpace(value), nil
}

func renderInline(fields []field) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		line, err := renderAssignment(f.Key, f.Value, false)
		if err != nil {
			return "", err
		}
		parts = append(parts, line)
	}
	return "{ " + strings.Join(parts, ", ") + " }", nil
}

func renderAssignment(key string, value any, multiline bool) (string, error) {
	k, err := renderKey(key)
	if err != nil {
		return "", err
	}
	v, err := renderValue(value, multiline)
	if err != nil {
		return "", err
	}
	return k + " = " + v, nil
}

// findKeyValue returns the key/value span whose full path equals path.
func findKeyValue(spans []span, path []string) (span, bool) {
	for _, s := range spans {
		if s.kind == spanKeyValue && slices.Equal(s.path(), path) {
			return s, true
		}
	}
	return span{}, false
}

// findHeader returns the index of the standard table header for path.
func findHeader(spans []span, path []string) (int, bool) {
	for i, s := range spans {
		if s.kind == spanHeader && !s.array && slices.Equal(s.table, path) {
			return i, true
		}
	}
	return -1, false
}

// lastDotted returns the last key/value that defines table through a dotted
// key written in an enclosing table.
func lastDotted(spans []span, table []string) (span, bool) {
	var (
		found span
		ok    bool
	)
	for _, s := range spans {
		if s.kind != spanKeyValue || len(s.table) >= len(table) {
			continue
		}
		if p := s.path(); len(p) > len(table) && hasPrefix(p, table) {
			found, ok = s, true
		}
	}
	return found, ok
}

// sectionEnd returns the line index where the section opened by spans[h] ends.
func (e *editor) sectionEnd(spans []span, h int) int {
	for _, s := range spans[h+1:] {
		if s.kind == spanHeader {
			return s.start
		}
	}
	return len(e.lines)
}

// setKey assigns an already rendered value to table.key. An existing
// assignment is replaced in place; otherwise the key is added to the table,
// creating the table at the end of the document if needed.
func (e *editor) setKey(table []string, key, value string) error {
	spans := e.spans()
	full := append(slices.Clone(table), key)

	if s, ok := findKeyValue(spans, full); ok {
		text := s.indent + s.keyText + " = " + value
		repl := e.toLines(text)
		last := len(repl) - 1
		repl[last] = strings.TrimSuffix(repl[last], e.nl) + s.tail
		e.splice(s.start, s.end, repl)
		return nil
	}

	k, err := renderKey(key)
	if err != nil {
		return err
	}
	assignment := e.toLines(k + " = " + value)

	if h, ok := findHeader(spans, table); ok {
		at := spans[h].end
		end := e.sectionEnd(spans, h)
		for _, s := range spans[h+1:] {
			if s.kind == spanHeader {
				break
			}
			if s.end <= end {
				at = s.end
			}
		}
		e.ensureNewline(at)
		e.splice(at, at, assignment)
		return nil
	}

	// A table defined by dotted keys (workspace.members = ...) cannot also get
	// a [header]; add the key next to its siblings in the same dotted form.
	if s, ok := lastDotted(spans, table); ok {
		rel, err := renderKeyPath(append(slices.Clone(table[len(s.table):]), key))
		if err != nil {
			return err
		}
		e.ensureNewline(s.end)
		e.splice(s.end, s.end, e.toLines(s.indent+rel+" = "+value))
		return nil
	}

	header, err := renderKeyPath(table)
	if err != nil {
		return err
	}
	at := len(e.lines)
	e.ensureNewline(at)
	var block []string
	if at > 0 {
		block = append(block, e.nl)
	}
	block = append(block, "["+header+"]"+e.nl)
	block = append(block, assignment...)
	e.splice(at, at, block)
	return nil
}

// ensureNewline makes sure the line before index at is newline terminated.
func (e *editor) ensureNewline(at int) {
	if at == 0 || at > len(e.lines) {
		return
	}
	if !strings.HasSuffix(e.lines[at-1], "\n") {
		e.lines[at-1] += e.nl
	}
}

// replaceEntry rewrites the table at path with fields, keeping the form it
// was written in: a [table] section stays a section, a key/value (inline
// table or dotted keys) becomes a single inline table assignment.
func (e *editor) replaceEntry(path []string, fields []field) error {
	spans := e.spans()

	if h, ok := findHeader(spans, path); ok {
		return e.replaceSection(spans, h, fields)
	}

	var owned []span
	for _, s := range spans {
		if s.kind == spanKeyValue && hasPrefix(s.path(), path) {
			owned = append(owned, s)
		}
	}
	if len(owned) == 0 {
		return errors.Newf("entry %s not found", strings.Join(path, "."))
	}

	first := owned[0]
	keyText := first.keyText
	if !slices.Equal(first.path(), path) {
		rel, err := renderKeyPath(path[len(first.table):])
		if err != nil {
			return err
		}
		keyText = rel
	}

	inline, err := renderInline(fields)
	if err != nil {
		return err
	}

	for i := len(owned) - 1; i > 0; i-- {
		e.splice(owned[i].start, owned[i].end, nil)
	}
	e.splice(first.start, first.end, []string{first.indent + keyText + " = " + inline + first.tail})
	return nil
}

// replaceSection rewrites the keys of the section opened by spans[h]. Keys
// still present are rewritten in place, dropped keys are removed and new keys
// follow the last kept one, so comments and blank lines stay where they were.
func (e *editor) replaceSection(spans []span, h int, fields []field) error {
	var owned []span
	for _, s := range spans[h+1:] {
		if s.kind == spanHeader {
			break
		}
		owned = append(owned, s)
	}

	values := make(map[string]any, len(fields))
	for _, f := range fields {
		values[f.Key] = f.Value
	}

	kept := make([]bool, len(owned))
	inPlace := make(map[string]bool)
	lastKept := -1
	for i, s := range owned {
		if len(s.key) != 1 || inPlace[s.key[0]] {
			continue
		}
		if _, ok := values[s.key[0]]; ok {
			kept[i] = true
			inPlace[s.key[0]] = true
			lastKept = i
		}
	}

	var added []string
	for _, f := range fields {
		if inPlace[f.Key] {
			continue
		}
		line, err := renderAssignment(f.Key, f.Value, false)
		if err != nil {
			return err
		}
		added = append(added, line+e.nl)
	}

	at := spans[h].end
	switch {
	case lastKept >= 0:
		at = owned[lastKept].end
	case len(owned) > 0:
		at = owned[0].start
	}

	// Bottom up, so earlier line indexes stay valid.
	for i := len(owned) - 1; i >= 0; i-- {
		s := owned[i]
		if i == lastKept {
			e.ensureNewline(at)
			e.splice(at, at, added)
		}
		if !kept[i] {
			e.splice(s.start, s.end, nil)
			continue
		}
		if e.unchanged(s, values[s.key[0]]) {
			continue
		}
		v, err := renderValue(values[s.key[0]], false)
		if err != nil {
			return err
		}
		tail := s.tail
		if i == lastKept && len(added) > 0 && !strings.HasSuffix(tail, "\n") {
			tail += e.nl
		}
		repl := e.toLines(s.indent + s.keyText + " = " + v)
		last := len(repl) - 1
		repl[last] = strings.TrimSuffix(repl[last], e.nl) + tail
		e.splice(s.start, s.end, repl)
	}
	if lastKept < 0 {
		e.ensureNewline(at)
		e.splice(at, at, added)
	}
	return nil
}

// unchanged reports whether the single-key assignment s already holds want.
func (e *editor) unchanged(s span, want any) bool {
	var m map[string]any
	if err := toml.Unmarshal([]byte(strings.Join(e.lines[s.start:s.end], "")), &m); err != nil {
		return false
	}
	got, ok := m[s.key[0]]
	return ok && reflect.DeepEqual(got, want)
}

func hasPrefix(path, prefix []string) bool {
	return len(path) >= len(prefix) && slices.Equal(path[:len(prefix)], prefix)
}
