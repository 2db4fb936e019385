package session

// Decision is a user's answer to a tool consent prompt.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Consent prompt answers.
const (
	answerAllow    = "1"
	answerDeny     = "2"
	answerAllowAll = "3"
)

// PermissionSet records per-tool decisions and the session-wide allow-all
// flag. Every decision persists for the rest of the session. Allow-all
// overrides stored denials.
type PermissionSet struct {
	decisions map[string]Decision
	allowAll  bool
}

// NewPermissionSet returns an empty set.
func NewPermissionSet() *PermissionSet {
	return &PermissionSet{decisions: make(map[string]Decision)}
}

// Lookup returns the decision that applies to tool, if any.
func (p *PermissionSet) Lookup(tool string) (Decision, bool) {
	if p.allowAll {
		return DecisionAllow, true
	}
	d, ok := p.decisions[tool]
	return d, ok
}

// Set stores the decision for tool.
func (p *PermissionSet) Set(tool string, d Decision) {
	p.decisions[tool] = d
}

// AllowAll permits every tool for the rest of the session.
func (p *PermissionSet) AllowAll() {
	p.allowAll = true
}

// AllowsAll reports whether allow-all was granted.
func (p *PermissionSet) AllowsAll() bool {
	return p.allowAll
}
