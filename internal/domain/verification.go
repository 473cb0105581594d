package domain

import "time"

// Purpose delimita para qué sirve un código de verificación.
type Purpose string

const (
	PurposeEmailVerification Purpose = "EMAIL_VERIFICATION"
	PurposePhoneVerification Purpose = "PHONE_VERIFICATION"
	PurposePasswordReset     Purpose = "PASSWORD_RESET"
)

// VerificationToken es un código de un solo uso ligado a un usuario y un propósito.
type VerificationToken struct {
	ID        string
	UserID    string
	Code      string
	Purpose   Purpose
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t VerificationToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
