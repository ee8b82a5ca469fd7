package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"llamachat/pkg/tool"
)

var ReadFileSchema = tool.NewSchema("ReadFile",
	"Read the contents of a file from the file system.",
	tool.Field{Name: "path", Type: tool.TypeString, Description: "The absolute path to the file to read.", Required: true},
)

type ReadFile struct {
	tool.BaseTool
}

func NewReadFile() *ReadFile {
	return &ReadFile{BaseTool: tool.NewBaseTool(ReadFileSchema)}
}

const maxFileChars = 50000

func (t *ReadFile) Execute(ctx context.Context, input map[string]any, tc *tool.ToolContext) (tool.Output, error) {
	path, ok := input["path"].(string)
	if !ok {
		return tool.Output{}, fmt.Errorf("path must be a string")
	}
	if !filepath.IsAbs(path) {
		return tool.Output{}, fmt.Errorf("path must be absolute: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tool.Output{}, fmt.Errorf("failed to read file: %w", err)
	}

	content := string(data)
	if len(content) > maxFileChars {
		content = content[:maxFileChars] + fmt.Sprintf("\n... (truncated, %d chars omitted)", len(content)-maxFileChars)
	}
	return tool.TextOutput(content), nil
}
