package types

// FinishReason explains why the backend stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// ParseFinishReason maps provider specific strings onto a FinishReason.
// Unknown values are reported as stop.
func ParseFinishReason(s string) FinishReason {
	switch s {
	case "length", "max_tokens", "MAX_TOKENS":
		return FinishReasonLength
	case "content_filter", "SAFETY":
		return FinishReasonContentFilter
	default:
		return FinishReasonStop
	}
}

// Usage represents token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatParams are the sampling parameters a caller attaches to a conversation.
// Nil pointers leave the decision to the backend.
type ChatParams struct {
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
}

// CompletionParams are the parameters of a raw prompt completion.
type CompletionParams struct {
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Echo             bool     `json:"echo,omitempty"`

	// ReturnSpecialTokens asks the backend to keep tokens such as <|python_tag|>
	// in the generated text. Backends that cannot honour it ignore it.
	ReturnSpecialTokens bool `json:"return_special_tokens"`
}

// CompletionParamsFor converts chat level parameters into completion parameters.
// Special tokens are always requested, the tool call parser depends on them.
func CompletionParamsFor(p ChatParams) CompletionParams {
	return CompletionParams{
		MaxTokens:           p.MaxTokens,
		Temperature:         p.Temperature,
		TopP:                p.TopP,
		ReturnSpecialTokens: true,
	}
}

// Completion is the raw text a backend generated for a prompt.
type Completion struct {
	Text         string       `json:"text"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        Usage        `json:"usage"`
}

// Ptr returns a pointer to v. Handy for the optional fields of the params structs.
func Ptr[T any](v T) *T {
	return &v
}
