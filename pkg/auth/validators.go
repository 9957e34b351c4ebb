package auth

// RegisterPayload represents the account creation request body.
type RegisterPayload struct {
	Username    string `json:"username" validate:"required,min=3,max=50"`
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"omitempty,max=100"`
	Password    string `json:"password" validate:"required"`
}

// LoginPayload represents the login request body.
type LoginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// StatusResponse reports whether any account exists yet.
type StatusResponse struct {
	NeedsSetup bool `json:"needs_setup"`
}

// MeResponse is the signed-in user's profile plus resolved authorization.
type MeResponse struct {
	ID          int      `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	Token string     `json:"token"`
	User  MeResponse `json:"user"`
}
