package domain

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	// RoleSystem is used by background jobs.
	RoleSystem Role = "system"
)

// Caller identifies who is driving an operation. It is resolved by the
// transport layer and passed explicitly; the core never reads it from globals.
type Caller struct {
	UserID string
	Role   Role
}

func (c Caller) IsOwner() bool {
	return c.Role == RoleOwner
}

func (c Caller) IsSystem() bool {
	return c.Role == RoleSystem
}

// SystemCaller is the identity background jobs act under.
func SystemCaller() Caller {
	return Caller{UserID: "system", Role: RoleSystem}
}
