package toolexecutor

import (
	"fmt"
	"strings"
)

// RiskLevel classifies how dangerous a tool is to run.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Role names used by the access policy.
const (
	RoleAdmin = "admin"
	RoleNone  = "none"
)

// ParseRiskLevel parses a risk level case-insensitively. Empty input means LOW.
func ParseRiskLevel(value string) (RiskLevel, error) {
	switch RiskLevel(strings.ToUpper(strings.TrimSpace(value))) {
	case "", RiskLow:
		return RiskLow, nil
	case RiskMedium:
		return RiskMedium, nil
	case RiskHigh:
		return RiskHigh, nil
	default:
		return "", fmt.Errorf("invalid risk level %q (must be LOW, MEDIUM or HIGH)", value)
	}
}

// IsValid reports whether r is one of the declared levels.
func (r RiskLevel) IsValid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// User identifies the caller on whose behalf a tool runs.
type User struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// ExecutionContext is caller-supplied identity and session data. The engine
// passes it unchanged to middleware, hooks and the executor.
type ExecutionContext struct {
	User *User `json:"user,omitempty"`

	// IsAdmin is the legacy admin flag. It is honored alongside User.Role.
	IsAdmin bool `json:"isAdmin,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ExecutionOptions are per-call overrides.
type ExecutionOptions struct {
	// Sudo bypasses risk gating.
	Sudo bool `json:"sudo,omitempty"`

	// Confirmed satisfies the confirmation gate.
	Confirmed bool `json:"confirmed,omitempty"`
}

// ResolveRole returns the effective role of the caller. User.Role "admin" and
// the legacy IsAdmin flag are equally authoritative; either one makes the
// caller an admin. Otherwise the declared role is returned, or RoleNone.
func ResolveRole(execCtx ExecutionContext) string {
	role := ""
	if execCtx.User != nil {
		role = strings.TrimSpace(execCtx.User.Role)
	}

	if role == RoleAdmin || execCtx.IsAdmin {
		return RoleAdmin
	}
	if role == "" {
		return RoleNone
	}
	return role
}

// CheckAccess applies the risk policy. LOW and MEDIUM tools are always
// allowed; HIGH tools need sudo or an admin caller.
func CheckAccess(toolName string, risk RiskLevel, execCtx ExecutionContext, opts ExecutionOptions) error {
	if risk != RiskHigh {
		return nil
	}
	if opts.Sudo {
		return nil
	}

	role := ResolveRole(execCtx)
	if role == RoleAdmin {
		return nil
	}

	return &RiskViolationError{
		ToolName:     toolName,
		RequiredRole: RoleAdmin,
		ActualRole:   role,
	}
}

// CheckConfirmation applies the confirmation gate. It is independent of the
// risk level.
func CheckConfirmation(toolName string, required bool, args map[string]interface{}, opts ExecutionOptions) error {
	if !required || opts.Confirmed {
		return nil
	}
	return &ConfirmationRequiredError{
		ToolName:    toolName,
		PendingArgs: args,
	}
}
