package command

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/rohmanhakim/curlgrab/internal/logging"
	"github.com/rohmanhakim/curlgrab/pkg/urlutil"
)

/*
Responsibilities
- Recover the target URL and its query parameters from a captured command
- Recover -H/--header name/value pairs
- Never fail: an untranslatable command yields an empty URL

Translation Semantics
- The first token holding a quoted value is the URL
- Caret markers are stripped, including ones that were meant literally
- The captured verb is never inspected; the method is always GET
- Duplicate query keys and header names: last one wins
*/

type Translator interface {
	Translate(ctx context.Context, command string) ParsedRequest
}

type CmdTranslator struct{}

func NewCmdTranslator() CmdTranslator {
	return CmdTranslator{}
}

func (CmdTranslator) Translate(ctx context.Context, command string) ParsedRequest {
	return Translate(ctx, command)
}

// Translate reconstructs a GET request from a captured command string.
func Translate(ctx context.Context, command string) ParsedRequest {
	logger := logging.FromContext(ctx)
	result := newParsedRequest()
	tokens := tokenize(command)

	if candidate, ok := urlCandidate(tokens); ok {
		target, params, err := parseTarget(candidate)
		if err != nil {
			logger.Warn().Err(err).Str("candidate", candidate).Msg("cannot parse url from command")
		} else {
			result.URL = target
			result.Params = params
		}
	} else {
		logger.Debug().Msg("command has no quoted url")
	}

	for i := 0; i < len(tokens)-1; i++ {
		if !isHeaderFlag(tokens[i]) {
			continue
		}
		i++
		name, value, ok := parseHeader(tokens[i].text)
		if !ok {
			logger.Debug().Str("header", tokens[i].text).Msg("skipping malformed header")
			continue
		}
		result.Headers[name] = value
	}

	logger.Debug().
		Str("url", result.URL).
		Int("params", len(result.Params)).
		Int("headers", len(result.Headers)).
		Msg("command translated")

	return result
}

func urlCandidate(tokens []token) (string, bool) {
	for _, tok := range tokens {
		if tok.quoted {
			return stripCarets(tok.text), true
		}
	}
	return "", false
}

func parseTarget(candidate string) (string, map[string]string, error) {
	parsed, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil {
		return "", nil, err
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return "", nil, &url.Error{Op: "parse", URL: candidate, Err: errNotAbsolute}
	}

	return urlutil.OriginAndPath(*parsed), parseParams(parsed.RawQuery), nil
}

// parseParams splits a raw query the way browsers do: every non-empty pair is kept,
// semicolons are ordinary characters and broken escapes stay literal.
func parseParams(rawQuery string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		params[stripCarets(decodeComponent(key))] = stripCarets(decodeComponent(value))
	}
	return params
}

// decodeComponent turns '+' into a space and decodes valid %XX sequences, leaving
// any other '%' as is.
func decodeComponent(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func isHeaderFlag(tok token) bool {
	if tok.quoted {
		return false
	}
	return tok.text == "-H" || tok.text == "--header"
}

func parseHeader(raw string) (string, string, bool) {
	rawName, rawValue, found := strings.Cut(raw, ":")
	if !found {
		return "", "", false
	}
	name := strings.TrimSpace(stripCarets(rawName))
	if !httpguts.ValidHeaderFieldName(name) {
		return "", "", false
	}
	value := strings.ReplaceAll(stripCarets(rawValue), `\"`, `"`)
	value = strings.TrimSpace(value)
	if !httpguts.ValidHeaderFieldValue(value) {
		return "", "", false
	}
	return name, value, true
}
