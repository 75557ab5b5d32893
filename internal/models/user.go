package models

import (
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserResponse is the public view of a user; it never carries the password hash.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserWithNotes is one row of the admin listing.
type UserWithNotes struct {
	*UserResponse
	Notes []*Note `json:"notes"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"omitempty,min=2,max=55"`
	Email    string `json:"email" binding:"omitempty,email,max=254"`
	Password string `json:"password" binding:"omitempty,min=8,max=72"`
}

func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = NormalizeEmail(r.Email)
}

func (r *RegisterRequest) Complete() bool {
	return r.Username != "" && r.Email != "" && r.Password != ""
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest carries the self-service profile fields. isAdmin is not
// accepted here.
type UpdateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,min=2,max=55"`
	Email    *string `json:"email" binding:"omitempty,email,max=254"`
	Password *string `json:"password" binding:"omitempty,min=8,max=72"`
}

func (r *UpdateProfileRequest) Normalize() {
	if r.Username != nil {
		username := strings.TrimSpace(*r.Username)
		r.Username = &username
	}
	if r.Email != nil {
		email := NormalizeEmail(*r.Email)
		r.Email = &email
	}
}

func (r *UpdateProfileRequest) IsEmpty() bool {
	return r.Username == nil && r.Email == nil && r.Password == nil
}

// ProfileUpdate is what the credential store persists; the password is already hashed.
type ProfileUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
