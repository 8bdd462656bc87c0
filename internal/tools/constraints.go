package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/openclaw/openclaw/internal/authz"
)

// emptyResidualsNote is rendered when the PDP returns no residual policies.
// Partial evaluation cannot distinguish unconditional allow from
// unconditional deny, so the ambiguity is stated explicitly.
const emptyResidualsNote = "No residual policies returned. " +
	"The action is either unconditionally allowed or unconditionally denied; " +
	"an empty result does not say which."

// advisoryActions is the closed vocabulary accepted by the constraint
// advisory tool, after alias normalization.
var advisoryActions = map[string]bool{
	"read":  true,
	"write": true,
	"edit":  true,
	"bash":  true,
}

// QueryConstraintsInput parameters for query_constraints tool
type QueryConstraintsInput struct {
	Action string `json:"action" jsonschema:"required,description=Tool action to query: read / write / edit / bash (exec and shell are accepted aliases)"`
}

// QueryConstraintsOutput result of query_constraints tool
type QueryConstraintsOutput struct {
	Action          string `json:"action"`
	Decision        string `json:"decision"`
	ConstraintCount int    `json:"constraint_count"`
	Constraints     string `json:"constraints"`
	Explanation     string `json:"explanation,omitempty"`
}

// ConstraintQuerier is the partial-query surface the advisory tool consumes.
type ConstraintQuerier interface {
	QueryConstraints(ctx context.Context, action string) (authz.ConstraintResult, error)
}

type queryConstraintsToolImpl struct {
	querier ConstraintQuerier
}

func (t *queryConstraintsToolImpl) execute(ctx context.Context, input *QueryConstraintsInput) (*QueryConstraintsOutput, error) {
	action := authz.NormalizeAction(input.Action)
	if !advisoryActions[action] {
		return nil, fmt.Errorf("unknown action %q, expected one of: %s", input.Action, advisoryVocabulary())
	}

	// Query failures surface as hard errors: this tool must never report a
	// false allowed or denied state.
	result, err := t.querier.QueryConstraints(ctx, action)
	if err != nil {
		return nil, err
	}

	return &QueryConstraintsOutput{
		Action:          action,
		Decision:        result.Decision,
		ConstraintCount: len(result.Residuals),
		Constraints:     renderResiduals(result.Residuals),
		Explanation:     result.Explanation,
	}, nil
}

func renderResiduals(residuals []string) string {
	if len(residuals) == 0 {
		return emptyResidualsNote
	}

	var b strings.Builder
	for i, residual := range residuals {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, strings.TrimSpace(residual))
	}
	return b.String()
}

func advisoryVocabulary() string {
	names := make([]string, 0, len(advisoryActions))
	for name := range advisoryActions {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// NewQueryConstraintsTool creates the query_constraints tool
func NewQueryConstraintsTool(querier ConstraintQuerier) (tool.InvokableTool, error) {
	impl := &queryConstraintsToolImpl{querier: querier}
	return utils.InferTool("query_constraints",
		"Query which policy constraints apply to a tool action before attempting it", impl.execute)
}
