package domain

import "time"

// Session registra un access token emitido en login.
// El registro es solo contable: la validación de tokens es criptográfica
// y no consulta esta tabla, por lo que borrar una fila no revoca el token.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
