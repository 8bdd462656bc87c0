package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

// EditFileInput parameters for edit_file tool.
type EditFileInput struct {
	Path    string `json:"path" jsonschema:"required,description=Absolute path to the file"`
	OldText string `json:"old_text" jsonschema:"required,description=Exact existing text to replace"`
	NewText string `json:"new_text" jsonschema:"required,description=Replacement text"`
}

type editFileToolImpl struct{}

func (editFileToolImpl) execute(_ context.Context, input *EditFileInput) (string, error) {
	if input.OldText == "" {
		return "", fmt.Errorf("old_text must not be empty")
	}

	data, err := os.ReadFile(input.Path)
	if err != nil {
		return "", err
	}

	content := string(data)
	occurrences := strings.Count(content, input.OldText)
	if occurrences == 0 {
		return "", fmt.Errorf("old_text not found in file")
	}
	if occurrences > 1 {
		return "", fmt.Errorf("old_text matches %d locations, make it unique", occurrences)
	}

	updated := strings.Replace(content, input.OldText, input.NewText, 1)
	if err := os.WriteFile(input.Path, []byte(updated), 0644); err != nil {
		return "", err
	}
	return "File edited successfully", nil
}

// NewEditFileTool creates the edit_file tool
func NewEditFileTool() (tool.InvokableTool, error) {
	return utils.InferTool("edit_file", "Replace an exact text fragment in a file", editFileToolImpl{}.execute)
}
