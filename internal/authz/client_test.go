package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func decisionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestClient_Decide_Allow(t *testing.T) {
	var received decisionRequest
	server := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"decision":    "Allow",
			"diagnostics": map[string]any{"reason": []string{"policy0"}, "errors": []string{}},
		})
	})

	client := NewClient(Config{Endpoint: server.URL})
	ids := BuildIdentifiers("OpenClaw", ActionRequest{
		ActorID: "agent-1",
		Action:  "read",
		CallID:  "call_1",
	})

	decision := client.Decide(context.Background(), ids)
	if !decision.Allowed {
		t.Fatalf("expected allow, got deny: %s", decision.Reason)
	}
	if len(decision.MatchedPolicyIDs) != 1 || decision.MatchedPolicyIDs[0] != "policy0" {
		t.Errorf("unexpected matched policies: %v", decision.MatchedPolicyIDs)
	}
	if received.Principal != `OpenClaw::Agent::"agent-1"` {
		t.Errorf("unexpected principal on wire: %s", received.Principal)
	}
	if received.Context == nil {
		t.Error("expected context object on wire")
	}
}

func TestClient_Decide_DenyWithDiagnosticError(t *testing.T) {
	server := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"decision": "Deny",
			"diagnostics": map[string]any{
				"reason": []string{"forbid-system-paths"},
				"errors": []string{"blocked by system-path policy"},
			},
		})
	})

	client := NewClient(Config{Endpoint: server.URL})
	decision := client.Decide(context.Background(), BuildIdentifiers("OpenClaw", ActionRequest{Action: "write"}))

	if decision.Allowed {
		t.Fatal("expected deny")
	}
	if decision.Reason != "blocked by system-path policy" {
		t.Errorf("expected first diagnostic error as reason, got %q", decision.Reason)
	}
}

func TestClient_Decide_DenySynthesizedReason(t *testing.T) {
	server := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"decision":    "Deny",
			"diagnostics": map[string]any{"reason": []string{"policy2"}, "errors": []string{}},
		})
	})

	client := NewClient(Config{Endpoint: server.URL})
	decision := client.Decide(context.Background(), BuildIdentifiers("OpenClaw", ActionRequest{Action: "write"}))

	if decision.Allowed {
		t.Fatal("expected deny")
	}
	if !strings.Contains(decision.Reason, "denied by policy") || !strings.Contains(decision.Reason, "policy2") {
		t.Errorf("expected synthesized reason with matched policy ids, got %q", decision.Reason)
	}
}

func TestClient_Decide_UnknownLabelIsDeny(t *testing.T) {
	server := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"decision": "Maybe"})
	})

	client := NewClient(Config{Endpoint: server.URL})
	decision := client.Decide(context.Background(), BuildIdentifiers("OpenClaw", ActionRequest{Action: "read"}))

	if decision.Allowed {
		t.Fatal("expected unknown decision label to deny")
	}
	if decision.Reason == "" {
		t.Error("expected reason to be populated on deny")
	}
}

func TestClient_Decide_TimeoutFailClosed(t *testing.T) {
	server := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"decision": "Allow"})
	})

	client := NewClient(Config{Endpoint: server.URL, Timeout: 30 * time.Millisecond})
	decision := client.Decide(context.Background(), BuildIdentifiers("OpenClaw", ActionRequest{Action: "read"}))

	if decision.Allowed {
		t.Fatal("expected fail-closed deny on timeout")
	}
	if !strings.Contains(decision.Reason, "Authorization service unavailable") {
		t.Errorf("expected unavailability reason, got %q", decision.Reason)
	}
}

func TestClient_Decide_TimeoutFailOpen(t *testing.T) {
	server := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"decision": "Deny"})
	})

	client := NewClient(Config{Endpoint: server.URL, Timeout: 30 * time.Millisecond, FailOpen: true})
	decision := client.Decide(context.Background(), BuildIdentifiers("OpenClaw", ActionRequest{Action: "read"}))

	if !decision.Allowed {
		t.Fatalf("expected fail-open allow on timeout, got deny: %s", decision.Reason)
	}
	if !strings.Contains(decision.Reason, "fail-open") {
		t.Errorf("expected fail-open marker in reason, got %q", decision.Reason)
	}
}

func TestClient_Decide_TransportErrorFailClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(Config{Endpoint: server.URL})
	decision := client.Decide(context.Background(), BuildIdentifiers("OpenClaw", ActionRequest{Action: "read"}))

	if decision.Allowed {
		t.Fatal("expected deny when the PDP is unreachable")
	}
	if !strings.Contains(decision.Reason, "Authorization service unavailable") {
		t.Errorf("expected unavailability reason, got %q", decision.Reason)
	}
}

func TestClient_Decide_NonSuccessStatusIsFailurePath(t *testing.T) {
	server := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	client := NewClient(Config{Endpoint: server.URL})
	decision := client.Decide(context.Background(), BuildIdentifiers("OpenClaw", ActionRequest{Action: "read"}))

	if decision.Allowed {
		t.Fatal("expected deny on non-success status")
	}
}

func TestClient_Decide_MalformedBodyIsFailurePath(t *testing.T) {
	server := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	client := NewClient(Config{Endpoint: server.URL, FailOpen: true})
	decision := client.Decide(context.Background(), BuildIdentifiers("OpenClaw", ActionRequest{Action: "read"}))

	if !decision.Allowed {
		t.Fatal("expected fail-open allow on malformed body")
	}
	if !strings.Contains(decision.Reason, "fail-open") {
		t.Errorf("expected fail-open marker, got %q", decision.Reason)
	}
}

func TestClient_Health(t *testing.T) {
	server := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	client := NewClient(Config{Endpoint: server.URL + "/authorize"})
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health error: %v", err)
	}

	unconfigured := NewClient(Config{})
	if err := unconfigured.Health(context.Background()); err == nil {
		t.Fatal("expected error without endpoint")
	}
}
