package domain

const (
	RoleUser     = "user"
	RoleOperator = "operator"
)

// Requester is the authenticated caller as reported by the auth provider.
type Requester struct {
	ID   string
	Role string
}
