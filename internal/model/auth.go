package model

// Token API error codes (used in HTTP responses)
const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// AccessTokenCookie is the cookie browsers carry the access token in.
const AccessTokenCookie = "access_token"

// LoginResponse is returned after successful login
type LoginResponse struct {
	User        *User       `json:"user"`
	Progress    ProgressBox `json:"progress"`
	AccessToken string      `json:"access_token"`
	ExpiresIn   int         `json:"expires_in"` // Seconds until access token expires
}
