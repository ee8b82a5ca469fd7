// Package llama3 renders conversations into the Llama 3 prompt format and
// parses raw model continuations back into structured messages.
//
// The package is pure: it performs no I/O apart from the single backend call
// made by Chat.
package llama3

// Special tokens of the Llama 3 prompt format. Any other token-like text is
// ordinary content.
const (
	BeginOfText  = "<|begin_of_text|>"
	EndOfTurn    = "<|eot_id|>"
	EndOfMessage = "<|eom_id|>"
	PythonTag    = "<|python_tag|>"
	StartHeader  = "<|start_header_id|>"
	EndHeader    = "<|end_header_id|>"
)
