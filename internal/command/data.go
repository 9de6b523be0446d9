package command

import "net/http"

// ParsedRequest is the HTTP request reconstructed from a captured command.
// An empty URL means the command could not be translated.
type ParsedRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Params  map[string]string `json:"params"`
	Headers map[string]string `json:"headers"`
}

func newParsedRequest() ParsedRequest {
	return ParsedRequest{
		Method:  http.MethodGet,
		Params:  map[string]string{},
		Headers: map[string]string{},
	}
}

// Usable reports whether the request carries a URL to fetch.
func (p ParsedRequest) Usable() bool {
	return p.URL != ""
}

// token is one whitespace-separated word of a captured command.
type token struct {
	text   string
	quoted bool
}
