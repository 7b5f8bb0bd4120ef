package httpdto

import (
	"time"

	"relay-chat/internal/domain/user"
)

// SignUpRequest is used for POST /users. The uid comes from the token.
type SignUpRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
}

// UpdateProfileRequest is used for PATCH /users/me. Absent fields are left
// unchanged.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	About     *string `json:"about,omitempty"`
	PhotoURL  *string `json:"photoUrl,omitempty"`
}

func (r UpdateProfileRequest) Patch() user.Patch {
	return user.Patch{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		About:     r.About,
		PhotoURL:  r.PhotoURL,
	}
}

type PushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// UserDTO is a public profile. Email and device tokens are only sent to
// their owner.
type UserDTO struct {
	UID        string   `json:"uid"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Username   string   `json:"username"`
	About      string   `json:"about,omitempty"`
	PhotoURL   string   `json:"photoUrl,omitempty"`
	Email      string   `json:"email,omitempty"`
	PushTokens []string `json:"pushTokens,omitempty"`
	SignUpDate string   `json:"signUpDate,omitempty"`
}

func NewUserDTO(u user.User) UserDTO {
	return UserDTO{
		UID:       u.UID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		About:     u.About,
		PhotoURL:  u.PhotoURL,
	}
}

// NewSelfDTO includes the owner-only fields.
func NewSelfDTO(u user.User) UserDTO {
	dto := NewUserDTO(u)
	dto.Email = u.Email
	dto.PushTokens = u.Tokens()
	if !u.SignUpDate.IsZero() {
		dto.SignUpDate = u.SignUpDate.UTC().Format(time.RFC3339)
	}
	return dto
}

type SearchUsersResponse struct {
	Users []UserDTO `json:"users"`
}
