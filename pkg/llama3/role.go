package llama3

import "fmt"

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleIPython authors tool results.
	RoleIPython Role = "ipython"
)

// Header renders the role header, e.g. <|start_header_id|>user<|end_header_id|>.
func (r Role) Header() string {
	return StartHeader + string(r) + EndHeader
}

// ParseRole validates s as a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSystem, RoleUser, RoleAssistant, RoleIPython:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}
