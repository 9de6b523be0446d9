package command

import "strings"

/*
Captured commands use the cmd.exe caret convention:

- ^ followed by a line break continues the line
- ^ followed by any other character escapes it
- " and ^" open or close a quoted value
- \" and \^" inside a quoted value are a literal quote

Whitespace outside a quoted value separates tokens.
*/

type tokenizer struct {
	input  []rune
	pos    int
	tokens []token

	current  strings.Builder
	inToken  bool
	inQuotes bool
	quoted   bool
}

func tokenize(input string) []token {
	t := &tokenizer{input: []rune(input)}
	t.run()
	return t.tokens
}

func (t *tokenizer) run() {
	for t.pos < len(t.input) {
		r := t.input[t.pos]
		switch {
		case r == '^':
			t.caret()
		case r == '"':
			t.toggleQuote(1)
		case r == '\\' && t.inQuotes:
			t.backslash()
		case isSpace(r) && !t.inQuotes:
			t.flush()
			t.pos++
		default:
			t.emit(r)
			t.pos++
		}
	}
	t.flush()
}

func (t *tokenizer) caret() {
	next, ok := t.peek(1)
	if !ok {
		// trailing caret
		t.pos++
		return
	}
	switch next {
	case '\n':
		t.pos += 2
	case '\r':
		if after, ok := t.peek(2); ok && after == '\n' {
			t.pos += 3
			return
		}
		t.pos += 2
	case '"':
		t.toggleQuote(2)
	case '\\':
		// ^\ is an escaped backslash, which may itself start \"
		t.pos++
		t.backslash()
	default:
		t.emit(next)
		t.pos += 2
	}
}

// backslash handles a backslash at t.pos.
func (t *tokenizer) backslash() {
	if t.inQuotes {
		if next, ok := t.peek(1); ok && next == '"' {
			t.emit('"')
			t.pos += 2
			return
		}
		if next, ok := t.peek(1); ok && next == '^' {
			if after, ok := t.peek(2); ok && after == '"' {
				t.emit('"')
				t.pos += 3
				return
			}
		}
	}
	t.emit('\\')
	t.pos++
}

func (t *tokenizer) toggleQuote(width int) {
	t.inQuotes = !t.inQuotes
	t.inToken = true
	t.quoted = true
	t.pos += width
}

func (t *tokenizer) emit(r rune) {
	t.current.WriteRune(r)
	t.inToken = true
}

func (t *tokenizer) flush() {
	if !t.inToken {
		return
	}
	t.tokens = append(t.tokens, token{text: t.current.String(), quoted: t.quoted})
	t.current.Reset()
	t.inToken = false
	t.quoted = false
}

func (t *tokenizer) peek(offset int) (rune, bool) {
	i := t.pos + offset
	if i >= len(t.input) {
		return 0, false
	}
	return t.input[i], true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func stripCarets(s string) string {
	return strings.ReplaceAll(s, "^", "")
}
