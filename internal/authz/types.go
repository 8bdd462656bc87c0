package authz

import "time"

// ActionRequest describes one intercepted tool invocation.
// It is built per call and never persisted.
type ActionRequest struct {
	ActorID    string
	SessionKey string
	Action     string
	Parameters map[string]any
	CallID     string
}

// Identifiers are the canonical Cedar-style identifiers sent to the PDP.
type Identifiers struct {
	Principal string
	Action    string
	Resource  string
	Context   map[string]any
}

// Decision is the enforced result of one point-decision request.
// Reason is always populated when Allowed is false.
type Decision struct {
	Allowed          bool
	Reason           string
	MatchedPolicyIDs []string
}

// ConstraintResult is the outcome of one partial-evaluation query.
// An empty Residuals slice means either unconditional allow or unconditional
// deny; callers must not assume one or the other.
type ConstraintResult struct {
	Decision    string
	Residuals   []string
	Explanation string
}

// Config holds the PDP connection settings. It is read-only after
// construction and threaded explicitly into every client call.
type Config struct {
	Endpoint           string
	ConstraintEndpoint string
	Timeout            time.Duration
	FailOpen           bool
	Namespace          string
	// Principal is the agent identity used for constraint queries,
	// where no concrete actor is available.
	Principal string
}

const (
	// DefaultTimeout bounds every PDP request unless configured otherwise.
	DefaultTimeout = 2 * time.Second

	// DefaultNamespace is the Cedar namespace of the policy schema.
	DefaultNamespace = "OpenClaw"
)

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) namespace() string {
	if c.Namespace == "" {
		return DefaultNamespace
	}
	return c.Namespace
}
