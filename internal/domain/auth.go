package domain

// Roles carried in the JWT role claim.
const (
	RoleClient   = "client"
	RoleCohealer = "cohealer"
	RoleAdmin    = "admin"
)

// JWTClaims represents the JWT payload.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
