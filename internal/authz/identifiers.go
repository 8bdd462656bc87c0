package authz

import (
	"fmt"
	"strings"
)

const (
	unknownPrincipal    = "unknown"
	constraintPrincipal = "main"
)

// Context keys required by the PDP schema. The schema declares all of them,
// so they must be present in every decision request even when empty.
const (
	ctxKeyFilePath   = "filePath"
	ctxKeyCommand    = "command"
	ctxKeyToolCallID = "toolCallId"
	ctxKeySessionKey = "sessionKey"
)

// actionAliases maps caller-supplied synonyms to canonical tool actions.
var actionAliases = map[string]string{
	"exec":  "bash",
	"shell": "bash",
	"sh":    "bash",
}

// NormalizeAction resolves synonyms to the canonical action name.
// Canonical names pass through unchanged, so normalization is idempotent.
func NormalizeAction(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := actionAliases[name]; ok {
		return canonical
	}
	return name
}

// BuildIdentifiers maps an ActionRequest onto the canonical identifiers the
// PDP expects. It is pure: no I/O, no failure mode, defaults fill every gap.
func BuildIdentifiers(namespace string, req ActionRequest) Identifiers {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	principal := strings.TrimSpace(req.ActorID)
	if principal == "" {
		principal = strings.TrimSpace(req.SessionKey)
	}
	if principal == "" {
		principal = unknownPrincipal
	}

	normalized := NormalizeAction(req.Action)

	context := map[string]any{
		ctxKeyFilePath:   firstStringParam(req.Parameters, "path", "file_path"),
		ctxKeyCommand:    firstStringParam(req.Parameters, "command"),
		ctxKeyToolCallID: strings.TrimSpace(req.CallID),
	}
	if sessionKey := strings.TrimSpace(req.SessionKey); sessionKey != "" {
		context[ctxKeySessionKey] = sessionKey
	}
	for key, value := range req.Parameters {
		switch key {
		case "path", "file_path", "command":
			continue
		}
		if _, fixed := context[key]; fixed {
			continue
		}
		context[key] = value
	}

	return Identifiers{
		Principal: fmt.Sprintf("%s::Agent::%q", namespace, principal),
		Action:    fmt.Sprintf("%s::Action::%q", namespace, "ToolExec::"+pascalCase(normalized)),
		Resource:  fmt.Sprintf("%s::Tool::%q", namespace, normalized),
		Context:   context,
	}
}

// buildConstraintIdentifiers builds identifiers for a partial query: same
// action and resource rules, a configurable principal, and no context. The
// query asks what would be required, not whether a specific attempt is
// allowed.
func buildConstraintIdentifiers(namespace, principal, action string) Identifiers {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	principal = strings.TrimSpace(principal)
	if principal == "" {
		principal = constraintPrincipal
	}

	normalized := NormalizeAction(action)
	return Identifiers{
		Principal: fmt.Sprintf("%s::Agent::%q", namespace, principal),
		Action:    fmt.Sprintf("%s::Action::%q", namespace, "ToolExec::"+pascalCase(normalized)),
		Resource:  fmt.Sprintf("%s::Tool::%q", namespace, normalized),
	}
}

// pascalCase splits a tool name on "-" and "_" and capitalizes each segment:
// "read_file" becomes "ReadFile".
func pascalCase(name string) string {
	segments := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_'
	})

	var b strings.Builder
	for _, segment := range segments {
		b.WriteString(strings.ToUpper(segment[:1]))
		b.WriteString(segment[1:])
	}
	return b.String()
}

// firstStringParam returns the first string value found under the given keys.
// Caller parameters are arbitrary JSON, so non-string values are ignored.
func firstStringParam(params map[string]any, keys ...string) string {
	for _, key := range keys {
		if raw, ok := params[key]; ok {
			if s, ok := raw.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
