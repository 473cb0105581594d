package domain

import "time"

// Role define el nivel de acceso de una cuenta.
type Role string

const (
	RoleUser   Role = "USER"
	RoleDoctor Role = "DOCTOR"
	RoleAdmin  Role = "ADMIN"
)

// AllowedRoles lista los roles aceptados en registro y cambios de rol.
var AllowedRoles = []Role{RoleUser, RoleDoctor, RoleAdmin}

func (r Role) Valid() bool {
	for _, allowed := range AllowedRoles {
		if r == allowed {
			return true
		}
	}
	return false
}

type User struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	PasswordHash    string     `json:"-"`
	Avatar          string     `json:"avatar,omitempty"`
	Provider        string     `json:"provider,omitempty"`
	ProviderID      string     `json:"-"`
	Role            Role       `json:"role"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at,omitempty"`
	IsDeleted       bool       `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PublicUser es la proyección de User que se devuelve en respuestas HTTP.
type PublicUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Role   Role   `json:"role"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Phone:  u.Phone,
		Avatar: u.Avatar,
		Role:   u.Role,
	}
}

// Federated indica si la cuenta se creó mediante un proveedor externo.
func (u User) Federated() bool {
	return u.ProviderID != ""
}
