package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

// Credentials is what the boundary extracted from a webhook request.
// An empty Token means no credentials were presented.
type Credentials struct {
	Token         string
	RequestedRole string
}

func (c Credentials) Anonymous() bool {
	return c.Token == ""
}
