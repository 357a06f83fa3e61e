package common

// AuthorizationHeaderName is the HTTP header carrying the bearer token.
const AuthorizationHeaderName = "Authorization"

// Role names stored in users.role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
