package toolexecutor

// ToolPolicy defines which tools an agent can use
type ToolPolicy struct {
	Allow []string `json:"allow" mapstructure:"allow"` // "*" allows everything
	Deny  []string `json:"deny" mapstructure:"deny"`   // overrides allow
}

// NewAllowPolicy returns a policy allowing exactly names. An empty list
// yields a nil policy, which allows every tool.
func NewAllowPolicy(names []string) *ToolPolicy {
	if len(names) == 0 {
		return nil
	}
	return &ToolPolicy{Allow: append([]string(nil), names...)}
}

// IsToolAllowed checks if a tool is allowed by the policy
func (tp *ToolPolicy) IsToolAllowed(toolName string) bool {
	if tp == nil {
		return true
	}

	for _, denied := range tp.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	for _, allowed := range tp.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	return false
}
