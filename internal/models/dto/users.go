package dto

import "github.com/taskhive/taskhive-be/internal/models"

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Age      int    `json:"age"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by registration and login.
type AuthResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}
