package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"llamachat/pkg/tool"
)

var FindFilesSchema = tool.NewSchema("FindFiles",
	"Find files matching a glob pattern. Supports wildcards like **/*.go.",
	tool.Field{Name: "pattern", Type: tool.TypeString, Description: "The glob pattern to match (e.g., 'src/**/*.ts').", Required: true},
	tool.Field{Name: "root_dir", Type: tool.TypeString, Description: "The directory to search from (defaults to the current directory)."},
	tool.Field{Name: "exclude", Type: tool.TypeArray, Items: &tool.Field{Type: tool.TypeString}, Description: "Patterns to exclude."},
)

// FindFilesArgs is the decoded form of FindFilesSchema.
type FindFilesArgs struct {
	Pattern string   `json:"pattern"`
	RootDir string   `json:"root_dir,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

const maxMatches = 1000

func NewFindFiles() *tool.Struct[FindFilesArgs] {
	return tool.NewStruct(FindFilesSchema, findFiles).WithTimeout(30 * time.Second)
}

func findFiles(ctx context.Context, args FindFilesArgs, tc *tool.ToolContext) (tool.Output, error) {
	root := args.RootDir
	if root == "" {
		root = "."
	}

	matches, err := doublestar.Glob(os.DirFS(root), args.Pattern)
	if err != nil {
		return tool.Output{}, fmt.Errorf("glob failed: %w", err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	var found []string
	for _, m := range matches {
		if excluded(m, args.Exclude) {
			continue
		}
		found = append(found, filepath.Join(absRoot, m))
	}

	if len(found) == 0 {
		return tool.TextOutput("no files matched"), nil
	}

	out := tool.Output{}
	if len(found) > maxMatches {
		out.Contents = append(out.Contents, fmt.Sprintf("%d matches, showing the first %d", len(found), maxMatches))
		found = found[:maxMatches]
	}
	out.Contents = append(out.Contents, strings.Join(found, "\n"))
	return out, nil
}

func excluded(path string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
