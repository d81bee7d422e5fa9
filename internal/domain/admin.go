package domain

// RoleAdmin is the only role issued by the admin login.
const RoleAdmin = "admin"

// TokenPair is what a successful admin login returns.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
