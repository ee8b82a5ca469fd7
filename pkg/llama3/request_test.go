package llama3_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llamachat/pkg/llama3"
	"llamachat/pkg/tool"
	"llamachat/pkg/types"
)

const llama = "llama-3.1-8b-instruct"

type GetShipmentDate struct {
	OrderID string `json:"order_id"`
}

var getShipmentDate = llama3.DefineTool[GetShipmentDate](tool.NewSchema(
	"GetShipmentDate", "Get the shipment date of an order",
	tool.Field{Name: "order_id", Type: tool.TypeString, Required: true},
))

func newRequest(t *testing.T, msgs []llama3.Message, tools ...llama3.ToolDefinition) *llama3.ChatRequest {
	t.Helper()
	req, err := llama3.NewChatRequest(llama, msgs, tools, types.ChatParams{})
	require.NoError(t, err)
	return req
}

func TestChatRequest_RenderHaiku(t *testing.T) {
	req := newRequest(t, []llama3.Message{
		llama3.SystemMessage{Content: "You are a poet who strictly speaks in haikus."},
		llama3.UserMessage{Content: "oat milk"},
	})

	want := `<|begin_of_text|><|start_header_id|>system<|end_header_id|>

You are a poet who strictly speaks in haikus.<|eot_id|><|start_header_id|>user<|end_header_id|>

oat milk<|eot_id|><|start_header_id|>assistant<|end_header_id|>

`
	if diff := cmp.Diff(want, req.Render()); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestChatRequest_RenderWithoutFirstUser(t *testing.T) {
	req := newRequest(t, []llama3.Message{
		llama3.SystemMessage{Content: "Report the result of the last order lookup."},
		llama3.ToolSuccess("1970-01-01"),
	}, getShipmentDate)

	_, ok := req.User()
	assert.False(t, ok)

	want := `<|begin_of_text|><|start_header_id|>system<|end_header_id|>

Environment: ipython
Report the result of the last order lookup.<|eot_id|><|start_header_id|>ipython<|end_header_id|>

completed[stdout]1970-01-01[/stdout]<|eot_id|><|start_header_id|>assistant<|end_header_id|>

`
	if diff := cmp.Diff(want, req.Render()); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestChatRequest_System(t *testing.T) {
	poet := llama3.SystemMessage{Content: "You are a poet who strictly speaks in haikus."}
	question := llama3.UserMessage{Content: "What is the square root of 16?"}

	tests := []struct {
		name   string
		msgs   []llama3.Message
		tools  []llama3.ToolDefinition
		want   string
		wantOK bool
	}{
		{
			name: "No Tools No System",
			msgs: []llama3.Message{question},
		},
		{
			name:   "No Tools",
			msgs:   []llama3.Message{poet, question},
			want:   "You are a poet who strictly speaks in haikus.",
			wantOK: true,
		},
		{
			name:   "Code Interpreter",
			msgs:   []llama3.Message{question},
			tools:  []llama3.ToolDefinition{llama3.CodeInterpreterTool},
			want:   "Environment: ipython",
			wantOK: true,
		},
		{
			name:   "Merged With Caller System",
			msgs:   []llama3.Message{poet, question},
			tools:  []llama3.ToolDefinition{llama3.CodeInterpreterTool},
			want:   "Environment: ipython\nYou are a poet who strictly speaks in haikus.",
			wantOK: true,
		},
		{
			name:   "Custom Tool",
			msgs:   []llama3.Message{question},
			tools:  []llama3.ToolDefinition{getGithubReadme},
			want:   "Environment: ipython",
			wantOK: true,
		},
		{
			name:   "Built-in Tools Listed",
			msgs:   []llama3.Message{question},
			tools:  []llama3.ToolDefinition{llama3.CodeInterpreterTool, llama3.BraveSearchTool, llama3.WolframAlphaTool},
			want:   "Environment: ipython\nTools: brave_search, wolfram_alpha",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(t, tt.msgs, tt.tools...)
			got, ok := req.System()
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, got.Content)
			assert.Equal(t, "<|start_header_id|>system<|end_header_id|>\n\n"+tt.want+"<|eot_id|>", got.Render())
		})
	}
}

func TestChatRequest_ToolSubsets(t *testing.T) {
	req := newRequest(t,
		[]llama3.Message{llama3.UserMessage{Content: "What is the square root of 16?"}},
		llama3.CodeInterpreterTool, llama3.BraveSearchTool, getGithubReadme,
	)

	assert.Equal(t, []llama3.BuiltInTool{llama3.BraveSearchTool}, req.SystemPromptTools())

	custom := req.UserProvidedTools()
	require.Len(t, custom, 1)
	assert.Equal(t, "get_github_readme", custom[0].Name())
}

func TestChatRequest_RenderCustomTool(t *testing.T) {
	req := newRequest(t,
		[]llama3.Message{llama3.UserMessage{Content: "What is the readme of the llamachat repository?"}},
		getGithubReadme,
	)

	want := `<|begin_of_text|><|start_header_id|>system<|end_header_id|>

Environment: ipython<|eot_id|><|start_header_id|>user<|end_header_id|>

Answer the user's question by making use of the following functions if needed.

{
    "type": "function",
    "function": {
        "name": "get_github_readme",
        "description": "Get the readme of a GitHub repository",
        "parameters": {
            "properties": {
                "repository": {
                    "type": "string"
                }
            },
            "required": [
                "repository"
            ],
            "type": "object"
        }
    }
}

Return function calls in JSON format.

Question: What is the readme of the llamachat repository?<|eot_id|><|start_header_id|>assistant<|end_header_id|>

`
	if diff := cmp.Diff(want, req.Render()); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestChatRequest_RenderToolRoundTrip(t *testing.T) {
	req := newRequest(t,
		[]llama3.Message{llama3.UserMessage{Content: "When will my order (42) arrive?"}},
		getShipmentDate,
	)
	require.NoError(t, req.Extend(
		llama3.ToolRequest{ToolCalls: []llama3.ToolCall{
			llama3.NewToolCall("get_shipment_date", map[string]any{"order_id": "42"}),
		}},
		llama3.ToolSuccess("1970-01-01"),
	))

	want := `<|begin_of_text|><|start_header_id|>system<|end_header_id|>

Environment: ipython<|eot_id|><|start_header_id|>user<|end_header_id|>

Answer the user's question by making use of the following functions if needed.

{
    "type": "function",
    "function": {
        "name": "get_shipment_date",
        "description": "Get the shipment date of an order",
        "parameters": {
            "properties": {
                "order_id": {
                    "type": "string"
                }
            },
            "required": [
                "order_id"
            ],
            "type": "object"
        }
    }
}

Return function calls in JSON format.

Question: When will my order (42) arrive?<|eot_id|><|start_header_id|>assistant<|end_header_id|>

{"type": "function", "name": "get_shipment_date", "parameters": {"order_id": "42"}}<|eom_id|><|start_header_id|>ipython<|end_header_id|>

completed[stdout]1970-01-01[/stdout]<|eot_id|><|start_header_id|>assistant<|end_header_id|>

`
	if diff := cmp.Diff(want, req.Render()); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateMessages(t *testing.T) {
	system := llama3.SystemMessage{Content: "s"}
	user := llama3.UserMessage{Content: "u"}
	assistant := llama3.AssistantReply{Content: "a"}
	ipython := llama3.ToolSuccess("i")

	tests := []struct {
		name    string
		msgs    []llama3.Message
		wantErr error
	}{
		{name: "Empty", msgs: nil, wantErr: llama3.ErrNoMessages},
		{name: "User", msgs: []llama3.Message{user}},
		{name: "System User", msgs: []llama3.Message{system, user}},
		{name: "Assistant Alone", msgs: []llama3.Message{assistant}, wantErr: llama3.ErrFirstMessage},
		{name: "System Alone", msgs: []llama3.Message{system}, wantErr: llama3.ErrLastMessage},
		{name: "IPython First", msgs: []llama3.Message{ipython}, wantErr: llama3.ErrFirstMessage},
		{name: "System Then IPython", msgs: []llama3.Message{system, ipython}},
		{name: "System Then Assistant", msgs: []llama3.Message{system, assistant, user}, wantErr: llama3.ErrAlternation},
		{name: "Double System", msgs: []llama3.Message{system, system, user}, wantErr: llama3.ErrAlternation},
		{name: "Start With Assistant", msgs: []llama3.Message{assistant, user}, wantErr: llama3.ErrFirstMessage},
		{name: "End With Assistant", msgs: []llama3.Message{user, assistant}, wantErr: llama3.ErrLastMessage},
		{name: "Tool Round Trip", msgs: []llama3.Message{user, assistant, ipython}},
		{name: "With System", msgs: []llama3.Message{system, user, assistant, ipython}},
		{name: "Not Alternating", msgs: []llama3.Message{user, ipython}, wantErr: llama3.ErrAlternation},
		{name: "Double Assistant", msgs: []llama3.Message{user, assistant, assistant, user}, wantErr: llama3.ErrAlternation},
		{name: "Late System", msgs: []llama3.Message{user, assistant, system}, wantErr: llama3.ErrAlternation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := llama3.ValidateMessages(tt.msgs)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// legal is an independent statement of the conversation grammar:
// (system | user) opens, and after an optional system message
// (user|ipython) (assistant (user|ipython))*
func legal(roles []llama3.Role) bool {
	if len(roles) == 0 || (roles[0] != llama3.RoleSystem && roles[0] != llama3.RoleUser) {
		return false
	}
	if roles[0] == llama3.RoleSystem {
		roles = roles[1:]
	}
	if len(roles)%2 == 0 {
		return false
	}
	for i, r := range roles {
		turn := r == llama3.RoleUser || r == llama3.RoleIPython
		if i%2 == 1 {
			turn = r == llama3.RoleAssistant
		}
		if !turn {
			return false
		}
	}
	return true
}

func TestValidateMessages_RandomSequences(t *testing.T) {
	roles := []llama3.Role{llama3.RoleSystem, llama3.RoleUser, llama3.RoleAssistant, llama3.RoleIPython}
	messageFor := map[llama3.Role]llama3.Message{
		llama3.RoleSystem:    llama3.SystemMessage{Content: "s"},
		llama3.RoleUser:      llama3.UserMessage{Content: "u"},
		llama3.RoleAssistant: llama3.AssistantReply{Content: "a"},
		llama3.RoleIPython:   llama3.ToolFailure("i"),
	}

	rng := rand.New(rand.NewPCG(1, 2))
	accepted := 0
	for range 5000 {
		seq := make([]llama3.Role, rng.IntN(8))
		msgs := make([]llama3.Message, len(seq))
		for i := range seq {
			// Bias towards legal sequences so both outcomes are exercised.
			if i%2 == 0 && rng.IntN(3) > 0 {
				seq[i] = llama3.RoleUser
			} else if i%2 == 1 && rng.IntN(3) > 0 {
				seq[i] = llama3.RoleAssistant
			} else {
				seq[i] = roles[rng.IntN(len(roles))]
			}
			msgs[i] = messageFor[seq[i]]
		}

		err := llama3.ValidateMessages(msgs)
		if legal(seq) != (err == nil) {
			t.Fatalf("roles %v: legal=%v, ValidateMessages error=%v", seq, legal(seq), err)
		}
		if err == nil {
			accepted++
		}
	}
	assert.Positive(t, accepted)
}

func TestChatRequest_ExtendIsAtomic(t *testing.T) {
	req := newRequest(t, []llama3.Message{llama3.UserMessage{Content: "hi"}})

	err := req.Extend(llama3.UserMessage{Content: "again"})
	assert.True(t, errors.Is(err, llama3.ErrAlternation))
	assert.Len(t, req.Messages(), 1)

	err = req.Extend(llama3.AssistantReply{Content: "hello"})
	assert.True(t, errors.Is(err, llama3.ErrLastMessage))
	assert.Len(t, req.Messages(), 1)

	require.NoError(t, req.Extend(llama3.AssistantReply{Content: "hello"}, llama3.UserMessage{Content: "bye"}))
	assert.Len(t, req.Messages(), 3)
	assert.Equal(t, llama3.UserMessage{Content: "bye"}, req.Last())
}

func TestNewChatRequest_CopiesInput(t *testing.T) {
	msgs := []llama3.Message{llama3.UserMessage{Content: "hi"}}
	req := newRequest(t, msgs)

	msgs[0] = llama3.AssistantReply{Content: "mutated"}
	assert.Equal(t, llama3.UserMessage{Content: "hi"}, req.Messages()[0])

	got := req.Messages()
	got[0] = llama3.AssistantReply{Content: "mutated"}
	assert.Equal(t, llama3.UserMessage{Content: "hi"}, req.Messages()[0])
}

func TestNewChatRequest_Invalid(t *testing.T) {
	_, err := llama3.NewChatRequest(llama, nil, nil, types.ChatParams{})
	assert.ErrorIs(t, err, llama3.ErrNoMessages)
}
