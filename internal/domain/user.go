package domain

import "time"

// User is an identity issued by the identity provider
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignInRequest asks for a magic sign-in link
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Redirect string `json:"redirect,omitempty"`
}

// SignInCode is a pending one-time sign-in code
type SignInCode struct {
	Email    string
	Redirect string
}

// Tokens is a freshly minted session credential pair
type Tokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
