package domain

// User is the authenticated identity attached to a socket or request.
// Issuance lives outside the core; only the identifier matters here.
type User struct {
	ID       UserID
	Username string
}
