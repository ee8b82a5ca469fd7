package llama3

import "strings"

// Response is a model continuation with the special tokens removed.
type Response struct {
	Text string
	// PythonTag reports whether generation started with <|python_tag|>,
	// which announces a tool call.
	PythonTag bool
}

// ParseResponse normalises a raw continuation: end-of-turn and end-of-message
// tokens are dropped, whitespace is trimmed and a leading python tag is
// detected and stripped. Unknown tokens pass through verbatim.
func ParseResponse(raw string) Response {
	text := strings.ReplaceAll(raw, EndOfTurn, "")
	text = strings.ReplaceAll(text, EndOfMessage, "")
	text = strings.TrimSpace(text)

	rest, found := strings.CutPrefix(text, PythonTag)
	return Response{Text: rest, PythonTag: found}
}
