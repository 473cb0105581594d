package service

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hospital-auth/internal/domain"
)

// TokenService emite y valida tokens JWT firmados con HS256.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Claims es el payload decodificado de un token firmado.
type Claims struct {
	UserID    string      `json:"id"`
	Name      string      `json:"name,omitempty"`
	Email     string      `json:"email,omitempty"`
	Phone     string      `json:"phone,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
	TokenType string      `json:"type,omitempty"`
	jwt.RegisteredClaims
}

const (
	refreshTokenTTL      = 30 * 24 * time.Hour
	fallbackTokenSeconds = 900
)

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// NewTokenService falla si no hay secreto de firma; el proceso no debe
// arrancar sin él.
func NewTokenService(secret, accessExpiresIn string) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt signing secret is required")
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  ParseTokenDuration(accessExpiresIn),
		refreshTTL: refreshTokenTTL,
	}, nil
}

// ParseTokenDuration acepta "<entero><unidad>" con unidad s/m/h/d.
// Una duración no parseable cae al valor seguro de 900 segundos.
func ParseTokenDuration(s string) time.Duration {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return fallbackTokenSeconds * time.Second
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return fallbackTokenSeconds * time.Second
	}
	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second
	case "m":
		return time.Duration(n) * time.Minute
	case "h":
		return time.Duration(n) * time.Hour
	case "d":
		return time.Duration(n) * 24 * time.Hour
	default:
		return fallbackTokenSeconds * time.Second
	}
}

// AccessTTL expone la vigencia configurada del access token.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL expone la vigencia fija del refresh token.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// IssueAccessToken firma un token con la identidad del usuario.
func (s *TokenService) IssueAccessToken(user domain.User) (string, error) {
	return s.sign(Claims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Phone:  user.Phone,
		Role:   user.Role,
	}, s.accessTTL)
}

// IssueRefreshToken firma un token que solo porta {id, type:"refresh"}.
func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	return s.sign(Claims{
		UserID:    userID,
		TokenType: "refresh",
	}, s.refreshTTL)
}

// Verify devuelve los claims de un token válido. Un token malformado,
// adulterado o expirado es un resultado negativo normal, nunca un error.
func (s *TokenService) Verify(token string) (Claims, bool) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, false
	}
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, false
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return Claims{}, false
	}
	return claims, true
}

// PeekExpiry decodifica la expiración declarada SIN verificar la firma.
// Sirve solo para mostrar o contabilizar, nunca para autorizar.
func (s *TokenService) PeekExpiry(token string) (time.Time, bool) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (s *TokenService) sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
