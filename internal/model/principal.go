package model

// Principal is the authenticated caller of a request.
//
// A session-token caller has UserID and Email from the token claims. The
// API-key caller is a service principal with Service set and no user
// identity of its own.
type Principal struct {
	UserID  string
	Email   string
	Name    string
	Service bool
}
