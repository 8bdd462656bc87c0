package tools

import (
	"context"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

// Filesystem tools perform no path policing of their own: workspace
// confinement and path policy live in the enforcement hook.

// ReadFileInput parameters for read_file tool
type ReadFileInput struct {
	Path string `json:"path" jsonschema:"required,description=Absolute path to the file"`
}

// ReadFileOutput result of read_file tool
type ReadFileOutput struct {
	Content    string `json:"content"`
	TotalLines int    `json:"total_lines"`
}

type readFileToolImpl struct{}

func (readFileToolImpl) execute(_ context.Context, input *ReadFileInput) (*ReadFileOutput, error) {
	data, err := os.ReadFile(input.Path)
	if err != nil {
		return nil, err
	}

	content := string(data)
	return &ReadFileOutput{
		Content:    content,
		TotalLines: len(strings.Split(content, "\n")),
	}, nil
}

// NewReadFileTool creates the read_file tool
func NewReadFileTool() (tool.InvokableTool, error) {
	return utils.InferTool("read_file", "Read the contents of a file", readFileToolImpl{}.execute)
}

// WriteFileInput parameters for write_file tool
type WriteFileInput struct {
	Path    string `json:"path" jsonschema:"required,description=Absolute path to the file"`
	Content string `json:"content" jsonschema:"required,description=Content to write"`
}

type writeFileToolImpl struct{}

func (writeFileToolImpl) execute(_ context.Context, input *WriteFileInput) (string, error) {
	if err := os.WriteFile(input.Path, []byte(input.Content), 0644); err != nil {
		return "", err
	}
	return "File written successfully", nil
}

// NewWriteFileTool creates the write_file tool
func NewWriteFileTool() (tool.InvokableTool, error) {
	return utils.InferTool("write_file", "Write content to a file", writeFileToolImpl{}.execute)
}

// ListDirInput parameters for list_dir tool
type ListDirInput struct {
	Path string `json:"path" jsonschema:"required,description=Directory path to list"`
}

type listDirToolImpl struct{}

func (listDirToolImpl) execute(_ context.Context, input *ListDirInput) ([]string, error) {
	entries, err := os.ReadDir(input.Path)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		result = append(result, name)
	}
	return result, nil
}

// NewListDirTool creates the list_dir tool
func NewListDirTool() (tool.InvokableTool, error) {
	return utils.InferTool("list_dir", "List contents of a directory", listDirToolImpl{}.execute)
}
