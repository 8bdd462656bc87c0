package enforce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openclaw/openclaw/internal/authz"
)

type stubDecisionClient struct {
	decision authz.Decision
	calls    int
	lastIDs  authz.Identifiers
}

func (s *stubDecisionClient) Decide(_ context.Context, ids authz.Identifiers) authz.Decision {
	s.calls++
	s.lastIDs = ids
	return s.decision
}

type panicDecisionClient struct{}

func (panicDecisionClient) Decide(context.Context, authz.Identifiers) authz.Decision {
	panic("decision client exploded")
}

type recordingInterceptor struct {
	name   string
	result InterceptResult
	err    error
	calls  int
}

func (r *recordingInterceptor) Name() string { return r.name }

func (r *recordingInterceptor) Intercept(_ context.Context, _ string, _ map[string]any) (InterceptResult, error) {
	r.calls++
	return r.result, r.err
}

type panicInterceptor struct{}

func (panicInterceptor) Name() string { return "panics" }

func (panicInterceptor) Intercept(context.Context, string, map[string]any) (InterceptResult, error) {
	panic("interceptor exploded")
}

func enabledConfig() authz.Config {
	return authz.Config{Endpoint: "http://localhost:8180/authorize"}
}

func TestHook_DenyShortCircuitsInterceptors(t *testing.T) {
	client := &stubDecisionClient{decision: authz.Decision{Allowed: false, Reason: "blocked by system-path policy"}}
	interceptor := &recordingInterceptor{name: "never"}
	hook := NewHook(enabledConfig(), true, client, interceptor)

	outcome := hook.Enforce(context.Background(), "write", map[string]any{"path": "/etc/passwd"}, "call_1", SessionContext{})

	if !outcome.Blocked {
		t.Fatal("expected blocked outcome")
	}
	if outcome.Reason != "blocked by system-path policy" {
		t.Errorf("unexpected reason: %q", outcome.Reason)
	}
	if interceptor.calls != 0 {
		t.Errorf("expected interceptor chain to be skipped, ran %d times", interceptor.calls)
	}
}

func TestHook_AllowWithNoInterceptorsKeepsParameters(t *testing.T) {
	client := &stubDecisionClient{decision: authz.Decision{Allowed: true}}
	hook := NewHook(enabledConfig(), true, client)

	params := map[string]any{"path": "/tmp/out.txt"}
	outcome := hook.Enforce(context.Background(), "write", params, "call_2", SessionContext{ActorID: "agent-1"})

	if outcome.Blocked {
		t.Fatalf("expected proceed, got block: %s", outcome.Reason)
	}
	if outcome.Parameters["path"] != "/tmp/out.txt" {
		t.Errorf("expected parameters unchanged, got %v", outcome.Parameters)
	}
	if client.lastIDs.Principal != `OpenClaw::Agent::"agent-1"` {
		t.Errorf("unexpected principal sent to PDP: %s", client.lastIDs.Principal)
	}
}

func TestHook_InterceptorPatchMergesShallowly(t *testing.T) {
	client := &stubDecisionClient{decision: authz.Decision{Allowed: true}}
	patcher := &recordingInterceptor{
		name:   "patcher",
		result: InterceptResult{Patch: map[string]any{"a": 2}},
	}
	hook := NewHook(enabledConfig(), true, client, patcher)

	outcome := hook.Enforce(context.Background(), "bash", map[string]any{"a": 1, "b": 3}, "call_3", SessionContext{})

	if outcome.Blocked {
		t.Fatalf("expected proceed, got block: %s", outcome.Reason)
	}
	if outcome.Parameters["a"] != 2 {
		t.Errorf("expected patch to overwrite a, got %v", outcome.Parameters["a"])
	}
	if outcome.Parameters["b"] != 3 {
		t.Errorf("expected b preserved, got %v", outcome.Parameters["b"])
	}
}

func TestHook_InterceptorBlockTerminatesChain(t *testing.T) {
	client := &stubDecisionClient{decision: authz.Decision{Allowed: true}}
	blocker := &recordingInterceptor{
		name:   "blocker",
		result: InterceptResult{Block: true, Reason: "not on my watch"},
	}
	after := &recordingInterceptor{name: "after"}
	hook := NewHook(enabledConfig(), true, client, blocker, after)

	outcome := hook.Enforce(context.Background(), "bash", nil, "call_4", SessionContext{})

	if !outcome.Blocked {
		t.Fatal("expected blocked outcome")
	}
	if outcome.Reason != "not on my watch" {
		t.Errorf("unexpected reason: %q", outcome.Reason)
	}
	if outcome.BlockedBy != "blocker" {
		t.Errorf("expected block attributed to interceptor, got %q", outcome.BlockedBy)
	}
	if after.calls != 0 {
		t.Errorf("expected chain to stop at blocker, later interceptor ran %d times", after.calls)
	}
}

func TestHook_FailingInterceptorIsIsolated(t *testing.T) {
	client := &stubDecisionClient{decision: authz.Decision{Allowed: true}}
	failing := &recordingInterceptor{name: "failing", err: context.DeadlineExceeded}
	patcher := &recordingInterceptor{
		name:   "patcher",
		result: InterceptResult{Patch: map[string]any{"fixed": true}},
	}
	hook := NewHook(enabledConfig(), true, client, failing, patcher)

	outcome := hook.Enforce(context.Background(), "bash", map[string]any{"keep": "yes"}, "call_5", SessionContext{})

	if outcome.Blocked {
		t.Fatalf("expected proceed despite failing interceptor, got block: %s", outcome.Reason)
	}
	if outcome.Parameters["keep"] != "yes" {
		t.Errorf("expected original parameters preserved, got %v", outcome.Parameters)
	}
	if outcome.Parameters["fixed"] != true {
		t.Errorf("expected later interceptor patch applied, got %v", outcome.Parameters)
	}
}

func TestHook_PanickingInterceptorIsIsolated(t *testing.T) {
	client := &stubDecisionClient{decision: authz.Decision{Allowed: true}}
	hook := NewHook(enabledConfig(), true, client, panicInterceptor{})

	outcome := hook.Enforce(context.Background(), "bash", map[string]any{"a": 1}, "call_6", SessionContext{})

	if outcome.Blocked {
		t.Fatalf("expected proceed, got block: %s", outcome.Reason)
	}
	if outcome.Parameters["a"] != 1 {
		t.Errorf("expected parameters unchanged, got %v", outcome.Parameters)
	}
}

func TestHook_PanickingDecisionClientBlocks(t *testing.T) {
	hook := NewHook(enabledConfig(), true, panicDecisionClient{})

	outcome := hook.Enforce(context.Background(), "bash", nil, "call_7", SessionContext{})

	if !outcome.Blocked {
		t.Fatal("a decision failure must never be interpreted as permission")
	}
	if !strings.Contains(outcome.Reason, "decision client exploded") {
		t.Errorf("expected panic detail in reason, got %q", outcome.Reason)
	}
}

func TestHook_DisabledSkipsDecisionButRunsInterceptors(t *testing.T) {
	client := &stubDecisionClient{decision: authz.Decision{Allowed: false, Reason: "should not be consulted"}}
	patcher := &recordingInterceptor{
		name:   "patcher",
		result: InterceptResult{Patch: map[string]any{"patched": true}},
	}
	hook := NewHook(enabledConfig(), false, client, patcher)

	outcome := hook.Enforce(context.Background(), "bash", map[string]any{}, "call_8", SessionContext{})

	if outcome.Blocked {
		t.Fatalf("expected proceed when enforcement disabled, got block: %s", outcome.Reason)
	}
	if client.calls != 0 {
		t.Errorf("expected decision client not to be consulted, called %d times", client.calls)
	}
	if patcher.calls != 1 {
		t.Errorf("expected interceptor chain to run, ran %d times", patcher.calls)
	}
	if outcome.Parameters["patched"] != true {
		t.Errorf("expected interceptor patch applied, got %v", outcome.Parameters)
	}
}

func TestHook_NoEndpointSkipsDecision(t *testing.T) {
	client := &stubDecisionClient{decision: authz.Decision{Allowed: false, Reason: "nope"}}
	hook := NewHook(authz.Config{}, true, client)

	outcome := hook.Enforce(context.Background(), "bash", nil, "call_9", SessionContext{})

	if outcome.Blocked {
		t.Fatalf("expected proceed without endpoint, got block: %s", outcome.Reason)
	}
	if client.calls != 0 {
		t.Errorf("expected decision client not to be consulted, called %d times", client.calls)
	}
}

func TestHook_EndToEnd_DenyFromLivePDP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["action"] != `OpenClaw::Action::"ToolExec::Write"` {
			t.Errorf("unexpected action on wire: %v", req["action"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"decision": "Deny",
			"diagnostics": map[string]any{
				"reason": []string{},
				"errors": []string{"blocked by system-path policy"},
			},
		})
	}))
	defer server.Close()

	cfg := authz.Config{Endpoint: server.URL}
	hook := NewHook(cfg, true, authz.NewClient(cfg))

	outcome := hook.Enforce(context.Background(), "write", map[string]any{"path": "/etc/passwd"}, "call_10", SessionContext{ActorID: "agent-abc123"})

	if !outcome.Blocked {
		t.Fatal("expected blocked outcome")
	}
	if outcome.Reason != "blocked by system-path policy" {
		t.Errorf("unexpected reason: %q", outcome.Reason)
	}
}

func TestHook_EndToEnd_AllowFromLivePDP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"decision":    "Allow",
			"diagnostics": map[string]any{"reason": []string{}, "errors": []string{}},
		})
	}))
	defer server.Close()

	cfg := authz.Config{Endpoint: server.URL}
	hook := NewHook(cfg, true, authz.NewClient(cfg))

	outcome := hook.Enforce(context.Background(), "write", map[string]any{"path": "/tmp/out.txt"}, "call_11", SessionContext{ActorID: "agent-abc123"})

	if outcome.Blocked {
		t.Fatalf("expected proceed, got block: %s", outcome.Reason)
	}
	if outcome.Parameters["path"] != "/tmp/out.txt" {
		t.Errorf("expected parameters unchanged, got %v", outcome.Parameters)
	}
}
