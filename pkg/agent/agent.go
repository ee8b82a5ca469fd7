package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"llamachat/pkg/llama3"
	"llamachat/pkg/memory"
	"llamachat/pkg/provider"
	"llamachat/pkg/tool"
	"llamachat/pkg/types"
)

// ErrMaxTurns is returned when the model keeps calling tools.
var ErrMaxTurns = errors.New("agent exceeded the maximum number of turns")

// Config describes how an Agent is assembled.
type Config struct {
	Backend  provider.CompletionModel
	Model    string
	Params   types.ChatParams
	System   string
	Registry *tool.Registry
	Executor *tool.Executor
	Memory   memory.Store
	Logger   *zap.Logger
	// External tools are declared to the model but executed by the caller:
	// a call to one of them ends Run with a pending request, answered later
	// through ReportToolResult.
	External []llama3.ToolDefinition
	// MaxTurns bounds the model calls of a single Run. Defaults to 8.
	MaxTurns int
}

// Agent drives a conversation: it asks the model for the next turn, executes
// requested tool calls and feeds their results back until the model answers.
type Agent struct {
	backend  provider.CompletionModel
	model    string
	params   types.ChatParams
	system   string
	registry *tool.Registry
	executor *tool.Executor
	memory   memory.Store
	external []llama3.ToolDefinition
	log      *zap.Logger
	maxTurns int
}

// New builds an Agent and wires defaults.
func New(cfg Config) (*Agent, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = tool.NewRegistry()
	}
	executor := cfg.Executor
	if executor == nil {
		executor = tool.NewExecutor(tool.ExecutorConfig{Logger: log})
	}
	mem := cfg.Memory
	if mem == nil {
		mem = memory.NewInMemory()
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 8
	}

	return &Agent{
		backend:  cfg.Backend,
		model:    cfg.Model,
		params:   cfg.Params,
		system:   cfg.System,
		registry: registry,
		executor: executor,
		memory:   mem,
		external: cfg.External,
		log:      log,
		maxTurns: maxTurns,
	}, nil
}

// Definitions declares every registered tool to the model. Handlers named
// like a built-in tool are declared as that built-in.
func (a *Agent) Definitions() []llama3.ToolDefinition {
	tools := a.registry.List()
	defs := make([]llama3.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		if b, ok := llama3.ParseBuiltInTool(t.Name()); ok {
			defs = append(defs, b)
			continue
		}
		defs = append(defs, llama3.DefineTool[map[string]any](t.Schema()))
	}
	return append(defs, a.external...)
}

// NewRequest starts a conversation with the agent's system prompt and tools.
func (a *Agent) NewRequest(question string) (*llama3.ChatRequest, error) {
	var msgs []llama3.Message
	if a.system != "" {
		msgs = append(msgs, llama3.SystemMessage{Content: a.system})
	}
	msgs = append(msgs, llama3.UserMessage{Content: question})
	return llama3.NewChatRequest(a.model, msgs, a.Definitions(), a.params)
}

// Result is the outcome of a Run.
type Result struct {
	SessionID string
	Reply     string
	// Pending is set when the model called an external tool.
	Pending *llama3.ToolRequest
	Turns   int
	Usage   types.Usage
}

// Run continues req until the model replies with text. req accumulates every
// turn, including tool calls and their results.
func (a *Agent) Run(ctx context.Context, req *llama3.ChatRequest) (*Result, error) {
	return a.run(ctx, "", req)
}

func (a *Agent) run(ctx context.Context, sessionID string, req *llama3.ChatRequest) (*Result, error) {
	res := &Result{SessionID: sessionID}
	for res.Turns < a.maxTurns {
		res.Turns++

		resp, err := llama3.Chat(ctx, a.backend, req)
		var callErr *llama3.ToolCallError
		switch {
		case errors.As(err, &callErr):
			// Let the model see why its call was rejected.
			a.log.Warn("Rejected tool call", zap.String("tool", callErr.Call.Name), zap.Error(callErr.Err))
			if err := req.Extend(
				llama3.ToolRequest{ToolCalls: []llama3.ToolCall{callErr.Call}},
				llama3.ToolFailure(callErr.Err.Error()),
			); err != nil {
				return nil, err
			}
			continue
		case err != nil:
			return nil, err
		}

		addUsage(&res.Usage, resp.Usage)

		switch msg := resp.Message.(type) {
		case llama3.AssistantReply:
			res.Reply = msg.Content
			return res, nil
		case llama3.ToolRequest:
			if a.isExternal(msg) {
				res.Pending = &msg
				return res, nil
			}
			if err := req.Extend(a.execute(ctx, sessionID, msg.ToolCalls)); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unexpected message %T", msg)
		}
	}
	return nil, ErrMaxTurns
}

// Ask adds question to a stored conversation and runs it. An empty
// sessionID starts a new conversation.
func (a *Agent) Ask(ctx context.Context, sessionID, question string) (*Result, error) {
	if sessionID == "" {
		req, err := a.NewRequest(question)
		if err != nil {
			return nil, err
		}
		sessionID = a.memory.Create(req)
		return a.step(ctx, sessionID, nil)
	}
	return a.step(ctx, sessionID, llama3.UserMessage{Content: question})
}

// ReportToolResult answers the pending external tool call of a session and
// continues the conversation.
func (a *Agent) ReportToolResult(ctx context.Context, sessionID string, result llama3.ToolResponseMessage) (*Result, error) {
	return a.step(ctx, sessionID, result)
}

// History returns the stored conversation of a session.
func (a *Agent) History(sessionID string) ([]llama3.Message, error) {
	req, ok := a.memory.Get(sessionID)
	if !ok {
		return nil, memory.ErrSessionNotFound
	}
	return req.Messages(), nil
}

func (a *Agent) step(ctx context.Context, sessionID string, msg llama3.Message) (*Result, error) {
	var res *Result
	err := a.memory.Update(sessionID, func(req *llama3.ChatRequest) error {
		if msg != nil {
			if err := req.Extend(msg); err != nil {
				return err
			}
		}
		var err error
		res, err = a.run(ctx, sessionID, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (a *Agent) isExternal(msg llama3.ToolRequest) bool {
	for _, call := range msg.ToolCalls {
		for _, def := range a.external {
			if def.Name() == call.Name {
				return true
			}
		}
	}
	return false
}

// execute runs all calls concurrently and folds their results into a single
// tool response turn.
func (a *Agent) execute(ctx context.Context, sessionID string, calls []llama3.ToolCall) llama3.ToolResponseMessage {
	results := make([]llama3.ToolResponseMessage, len(calls))
	var (
		reqs  []*tool.ExecuteRequest
		index []int
	)
	for i, call := range calls {
		t := a.registry.Find(call.Name)
		if t == nil {
			results[i] = llama3.ToolFailure(fmt.Sprintf("unknown tool %q", call.Name))
			continue
		}
		reqs = append(reqs, &tool.ExecuteRequest{
			Tool:  t,
			Input: call.Parameters(),
			Context: tool.NewToolContext(
				tool.WithSessionID(sessionID),
				tool.WithLogger(a.log),
				tool.WithMetadata("model", a.model),
			),
		})
		index = append(index, i)
	}

	for j, r := range a.executor.ExecuteBatch(ctx, reqs) {
		call := calls[index[j]]
		if r.Error != nil {
			a.log.Info("Tool failed", zap.String("tool", call.Name), zap.Int("attempts", r.Attempts), zap.Error(r.Error))
			results[index[j]] = llama3.ToolFailure(r.Error.Error())
			continue
		}
		a.log.Debug("Tool succeeded", zap.String("tool", call.Name), zap.Duration("duration", r.Duration))
		results[index[j]] = llama3.ToolSuccess(r.Output.Text())
	}

	if len(results) == 1 {
		return results[0]
	}
	return merge(results)
}

func merge(results []llama3.ToolResponseMessage) llama3.ToolResponseMessage {
	success := true
	parts := make([]string, len(results))
	for i, r := range results {
		success = success && r.Success
		parts[i] = r.Content
	}
	return llama3.ToolResponseMessage{Content: strings.Join(parts, "\n"), Success: success}
}

func addUsage(total *types.Usage, u types.Usage) {
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
}
