package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"llamachat/pkg/tool"
)

// CodeInterpreterSchema describes the arguments of the code_interpreter
// built-in. The model sends raw source after the python tag.
var CodeInterpreterSchema = tool.NewSchema("CodeInterpreter",
	"Execute source code and return what it printed.",
	tool.Field{Name: "src", Type: tool.TypeString, Description: "The source code to run.", Required: true},
)

type CodeInterpreter struct {
	tool.BaseTool

	// Interpreter is the command the source is piped into, e.g. "python3".
	Interpreter string
	Args        []string
	WorkDir     string
}

func NewCodeInterpreter(interpreter string, args ...string) *CodeInterpreter {
	if interpreter == "" {
		interpreter = "python3"
		args = []string{"-"}
	}
	t := &CodeInterpreter{
		BaseTool:    tool.NewBaseTool(CodeInterpreterSchema),
		Interpreter: interpreter,
		Args:        args,
	}
	t.TimeoutVal = 2 * time.Minute
	return t
}

// Execute runs src through the interpreter. A non-zero exit is reported as an
// error carrying stderr so the caller can send a failed tool response.
func (t *CodeInterpreter) Execute(ctx context.Context, input map[string]any, tc *tool.ToolContext) (tool.Output, error) {
	src, ok := input["src"].(string)
	if !ok {
		return tool.Output{}, fmt.Errorf("src must be a string")
	}

	cmd := exec.CommandContext(ctx, t.Interpreter, t.Args...)
	cmd.Stdin = strings.NewReader(src)
	if t.WorkDir != "" {
		cmd.Dir = t.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if tc != nil {
		tc.Logger.Debug("Code interpreter finished",
			zap.String("execution_id", tc.ExecutionID),
			zap.String("interpreter", t.Interpreter),
			zap.Error(err))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return tool.Output{}, &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return tool.Output{}, err
	}

	return tool.TextOutput(stdout.String()), nil
}

// ExitError reports a program that ran but exited non-zero.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return strings.TrimRight(e.Stderr, "\n")
}
