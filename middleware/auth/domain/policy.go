package domain

import (
	"fmt"
	"strings"
)

type Mode int

const (
	ModeRequired Mode = iota
	ModeRoleRequired
	ModeOptional
)

func (m Mode) String() string {
	switch m {
	case ModeRequired:
		return "required"
	case ModeRoleRequired:
		return "role"
	case ModeOptional:
		return "optional"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Policy diz como uma rota é protegida. Role só vale para ModeRoleRequired.
type Policy struct {
	Mode Mode
	Role string
}

func Required() Policy { return Policy{Mode: ModeRequired} }
func Optional() Policy { return Policy{Mode: ModeOptional} }
func RoleRequired(role string) Policy { return Policy{Mode: ModeRoleRequired, Role: role} }

func (p Policy) String() string {
	if p.Mode == ModeRoleRequired {
		return "role:" + p.Role
	}
	return p.Mode.String()
}

// ParsePolicy lê o formato usado na configuração:
// "required", "optional" ou "role:<nome>".
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "required", "":
		return Required(), nil
	case "optional":
		return Optional(), nil
	}
	if role, ok := strings.CutPrefix(s, "role:"); ok {
		role = strings.TrimSpace(role)
		if role == "" {
			return Policy{}, fmt.Errorf("policy %q: empty role", s)
		}
		return RoleRequired(role), nil
	}
	return Policy{}, fmt.Errorf("policy %q: unknown mode", s)
}
