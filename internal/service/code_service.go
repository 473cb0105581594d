package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hospital-auth/internal/domain"
	"hospital-auth/internal/repository"
)

const (
	codeTTL      = 3 * time.Minute
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// CodeService gobierna el ciclo de vida de códigos de un solo uso.
type CodeService struct {
	codes repository.VerificationTokenRepository
	now   func() time.Time
}

func NewCodeService(codes repository.VerificationTokenRepository) *CodeService {
	return &CodeService{
		codes: codes,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Issue barre filas expiradas, rechaza con RateLimitError si aún hay un
// código vigente para (usuario, propósito) y, si no, crea uno nuevo de
// 6 caracteres alfanuméricos con 3 minutos de vigencia.
func (s *CodeService) Issue(ctx context.Context, userID string, purpose domain.Purpose) (string, error) {
	now := s.now()
	if err := s.codes.DeleteExpired(ctx, userID, purpose, now); err != nil {
		return "", err
	}

	existing, err := s.codes.FindValid(ctx, userID, purpose, now)
	if err == nil {
		seconds := int(math.Ceil(existing.ExpiresAt.Sub(now).Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		return "", &RateLimitError{RetryAfterSeconds: seconds}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	code, err := generateCode(codeLength)
	if err != nil {
		return "", err
	}
	token := domain.VerificationToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(codeTTL),
		CreatedAt: now,
	}
	if err := s.codes.Create(ctx, token); err != nil {
		return "", err
	}
	return code, nil
}

// Consume acepta un código como máximo una vez; un reintento con el mismo
// código falla con ErrCodeInvalid.
func (s *CodeService) Consume(ctx context.Context, userID, code string, purpose domain.Purpose) error {
	err := s.codes.Consume(ctx, userID, code, purpose, s.now())
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrCodeInvalid
	}
	return err
}

func generateCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
