package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"hospital-auth/internal/domain"
	"hospital-auth/internal/notify"
	"hospital-auth/internal/repository"
)

// AuthService orquesta registro, login, verificación y reseteo de password.
// Es el único dueño de las transiciones de flags de verificación, rol y
// filas de VerificationToken.
type AuthService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	sessions repository.SessionRepository
	codes    *CodeService
	tokens   *TokenService
	email    notify.EmailSender
	sms      notify.SMSSender
	limiter  DispatchLimiter
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	codes *CodeService,
	tokens *TokenService,
	emailSender notify.EmailSender,
	smsSender notify.SMSSender,
	limiter DispatchLimiter,
) *AuthService {
	return &AuthService{
		logger:   logger,
		users:    users,
		sessions: sessions,
		codes:    codes,
		tokens:   tokens,
		email:    emailSender,
		sms:      smsSender,
		limiter:  limiter,
	}
}

type RegisterInput struct {
	Name       string
	Email      string
	Phone      string
	Password   string
	Role       domain.Role
	Avatar     string
	Provider   string
	ProviderID string
}

// TokenBundle agrupa los tokens emitidos y su metadata de expiración.
type TokenBundle struct {
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	AccessTokenExpiresIn  int64  `json:"accessTokenExpiresIn"`
	RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresIn"`
	AccessTokenExpiresAt  int64  `json:"accessTokenExpirationTime"`
	RefreshTokenExpiresAt int64  `json:"refreshTokenExpirationTime"`
}

type LoginResult struct {
	User   domain.PublicUser `json:"user"`
	Tokens TokenBundle       `json:"tokens"`
}

// Register crea la cuenta y despacha los códigos de verificación.
// Una falla de despacho NO revierte al usuario creado: la verificación
// queda pendiente y se reintenta vía resend.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.User{}, "", invalidInput("name is required")
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return domain.User{}, "", invalidInput("invalid role")
	}

	email := normalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)
	providerID := strings.TrimSpace(in.ProviderID)
	federated := providerID != ""

	if email == "" && phone == "" && !federated {
		return domain.User{}, "", invalidInput("email, phone number, or provider id is required")
	}
	if email != "" && !IsValidEmail(email) {
		return domain.User{}, "", invalidInput("invalid email format")
	}
	if phone != "" && !IsValidPhone(phone) {
		return domain.User{}, "", invalidInput("invalid phone number format")
	}
	if !federated && !IsStrongPassword(in.Password) {
		return domain.User{}, "", invalidInput("password must be at least 6 characters and include uppercase, lowercase, number, and special character")
	}

	if existing, key, err := s.findExisting(ctx, email, phone, providerID); err == nil {
		return domain.User{}, "", conflictFor(existing, key)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, "", err
	}

	var passwordHash string
	if in.Password != "" {
		hash, err := HashPassword(in.Password)
		if err != nil {
			return domain.User{}, "", err
		}
		passwordHash = hash
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		Avatar:       in.Avatar,
		Provider:     strings.TrimSpace(in.Provider),
		ProviderID:   providerID,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if federated {
		// El proveedor federado ya verificó la identidad declarada.
		if email != "" {
			user.EmailVerifiedAt = &now
		}
		if phone != "" {
			user.PhoneVerifiedAt = &now
		}
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			// Carrera con otro registro: equivale al pre-chequeo "ya existe".
			if existing, key, lookupErr := s.findExisting(ctx, email, phone, providerID); lookupErr == nil {
				return domain.User{}, "", conflictFor(existing, key)
			}
			return domain.User{}, "", &ConflictError{}
		}
		return domain.User{}, "", err
	}

	if federated {
		return user, "User registered via social provider.", nil
	}

	// Códigos independientes por canal.
	if email != "" {
		if err := s.issueAndDispatch(ctx, user.ID, email, "", domain.PurposeEmailVerification); err != nil {
			return user, "", err
		}
	}
	if phone != "" {
		if err := s.issueAndDispatch(ctx, user.ID, "", phone, domain.PurposePhoneVerification); err != nil {
			return user, "", err
		}
	}

	if email != "" {
		return user, "Verification email sent. Please check your inbox.", nil
	}
	return user, "Verification SMS sent. Please check your phone.", nil
}

type LoginInput struct {
	Email      string
	Phone      string
	Password   string
	Name       string
	Avatar     string
	Provider   string
	ProviderID string
}

// Login autentica por credenciales o por proveedor federado, emite los
// tokens y asienta la fila de sesión contable.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	email := normalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)
	providerID := strings.TrimSpace(in.ProviderID)

	if email == "" && phone == "" {
		return LoginResult{}, invalidInput("email or phone is required")
	}

	var (
		user domain.User
		err  error
	)
	if providerID != "" {
		user, err = s.users.GetByKey(ctx, domain.ByProvider(providerID))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			user, err = s.registerFederatedFirstContact(ctx, in, email, phone, providerID)
		case err == nil && !contactAgrees(user, email, phone):
			// Un providerId conocido con un contacto ajeno no autentica.
			return LoginResult{}, ErrUserNotFound
		}
	} else if email != "" {
		user, err = s.users.GetByKey(ctx, domain.ByEmail(email))
	} else {
		user, err = s.users.GetByKey(ctx, domain.ByPhone(phone))
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, ErrUserNotFound
		}
		return LoginResult{}, err
	}

	// Una cuenta borrada se rechaza igual que una inexistente.
	if user.IsDeleted {
		return LoginResult{}, ErrUserNotFound
	}

	if providerID != "" {
		if user.EmailVerifiedAt == nil && user.PhoneVerifiedAt == nil {
			return LoginResult{}, ErrNotVerified
		}
	} else {
		if email != "" && user.EmailVerifiedAt == nil {
			return LoginResult{}, ErrNotVerified
		}
		if phone != "" && user.PhoneVerifiedAt == nil {
			return LoginResult{}, ErrNotVerified
		}
		if user.PasswordHash == "" {
			return LoginResult{}, ErrNoPasswordSet
		}
		if !CheckPassword(user.PasswordHash, in.Password) {
			return LoginResult{}, ErrWrongPassword
		}
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: user.Public(), Tokens: tokens}, nil
}

// registerFederatedFirstContact auto-registra una cuenta USER verificada en
// el primer login federado; no despacha códigos de verificación.
func (s *AuthService) registerFederatedFirstContact(ctx context.Context, in LoginInput, email, phone, providerID string) (domain.User, error) {
	now := time.Now().UTC()
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "User"
	}
	user := domain.User{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		Phone:      phone,
		Avatar:     in.Avatar,
		Provider:   strings.TrimSpace(in.Provider),
		ProviderID: providerID,
		Role:       domain.RoleUser,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if email != "" {
		user.EmailVerifiedAt = &now
	}
	if phone != "" {
		user.PhoneVerifiedAt = &now
	}

	err := s.users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateUser) {
		// Carrera con otro primer contacto del mismo proveedor.
		return s.users.GetByKey(ctx, domain.ByProvider(providerID))
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ConfirmVerification consume el código y marca el canal como verificado.
// Repetir la confirmación de un canal ya verificado es un éxito sin efecto.
func (s *AuthService) ConfirmVerification(ctx context.Context, emailAddr, phone, code string) (string, error) {
	emailAddr = normalizeEmail(emailAddr)
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if (emailAddr == "" && phone == "") || code == "" {
		return "", invalidInput("email or phone and code are required")
	}

	user, err := s.lookupByChannel(ctx, emailAddr, phone)
	if err != nil {
		return "", err
	}

	if emailAddr != "" {
		if user.EmailVerifiedAt != nil {
			return "Email already verified.", nil
		}
		if err := s.codes.Consume(ctx, user.ID, code, domain.PurposeEmailVerification); err != nil {
			return "", err
		}
		now := time.Now().UTC()
		if err := s.users.SetEmailVerified(ctx, user.ID, now); err != nil {
			return "", err
		}
		if err := s.email.SendVerificationSuccess(ctx, emailAddr); err != nil {
			s.logger.Warn("verification success email failed", zap.Error(err), zap.String("email", emailAddr))
		}
		return fmt.Sprintf("Email %s verified successfully.", emailAddr), nil
	}

	if user.PhoneVerifiedAt != nil {
		return "Phone already verified.", nil
	}
	if err := s.codes.Consume(ctx, user.ID, code, domain.PurposePhoneVerification); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	if err := s.users.SetPhoneVerified(ctx, user.ID, now); err != nil {
		return "", err
	}
	if err := s.sms.SendVerificationSuccess(ctx, phone); err != nil {
		s.logger.Warn("verification success sms failed", zap.Error(err), zap.String("phone", phone))
	}
	return fmt.Sprintf("Phone number %s verified successfully.", phone), nil
}

// ResendCode reemite el código de verificación del canal indicado,
// respetando la regla de un solo código vigente por propósito.
func (s *AuthService) ResendCode(ctx context.Context, emailAddr, phone string) (string, error) {
	emailAddr = normalizeEmail(emailAddr)
	phone = strings.TrimSpace(phone)
	if emailAddr == "" && phone == "" {
		return "", invalidInput("email or phone number is required")
	}
	if emailAddr != "" && !IsValidEmail(emailAddr) {
		return "", invalidInput("invalid email format")
	}
	if phone != "" && !IsValidPhone(phone) {
		return "", invalidInput("invalid phone number format")
	}

	user, err := s.lookupByChannel(ctx, emailAddr, phone)
	if err != nil {
		return "", err
	}

	if !s.allowDispatch(emailAddr + phone) {
		return "", ErrTooManyRequests
	}

	if emailAddr != "" {
		if err := s.issueAndDispatch(ctx, user.ID, emailAddr, "", domain.PurposeEmailVerification); err != nil {
			return "", err
		}
		return "Verification email sent. Please check your inbox.", nil
	}
	if err := s.issueAndDispatch(ctx, user.ID, "", phone, domain.PurposePhoneVerification); err != nil {
		return "", err
	}
	return "Verification SMS sent. Please check your phone.", nil
}

// RequestPasswordReset emite un código de reseteo para un canal ya verificado.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr, phone string) (string, error) {
	emailAddr = normalizeEmail(emailAddr)
	phone = strings.TrimSpace(phone)
	if emailAddr == "" && phone == "" {
		return "", invalidInput("email or phone is required")
	}
	if emailAddr != "" && !IsValidEmail(emailAddr) {
		return "", invalidInput("invalid email format")
	}
	if phone != "" && !IsValidPhone(phone) {
		return "", invalidInput("invalid phone number format")
	}

	var (
		user domain.User
		err  error
	)
	if emailAddr != "" {
		user, err = s.users.GetByKey(ctx, domain.ByEmail(emailAddr))
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && user.EmailVerifiedAt == nil) {
			return "", ErrNotVerified
		}
	} else {
		user, err = s.users.GetByKey(ctx, domain.ByPhone(phone))
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && user.PhoneVerifiedAt == nil) {
			return "", ErrNotVerified
		}
	}
	if err != nil {
		return "", err
	}
	if user.IsDeleted {
		return "", ErrUserNotFound
	}

	if !s.allowDispatch(emailAddr + phone) {
		return "", ErrTooManyRequests
	}

	code, err := s.codes.Issue(ctx, user.ID, domain.PurposePasswordReset)
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().UTC().Add(codeTTL)
	if emailAddr != "" {
		if err := s.email.SendPasswordResetCode(ctx, emailAddr, code, expiresAt); err != nil {
			s.logger.Error("password reset email failed", zap.Error(err), zap.String("email", emailAddr))
			s.revokeCode(ctx, user.ID, code, domain.PurposePasswordReset)
			return "", ErrDispatchFailed
		}
		return "Verification code sent to your email.", nil
	}
	if err := s.sms.SendPasswordResetCode(ctx, phone, code, expiresAt); err != nil {
		s.logger.Error("password reset sms failed", zap.Error(err), zap.String("phone", phone))
		s.revokeCode(ctx, user.ID, code, domain.PurposePasswordReset)
		return "", ErrDispatchFailed
	}
	return "Verification code sent to your phone.", nil
}

// ConfirmPasswordReset consume el código de reseteo y guarda el nuevo hash.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, emailAddr, phone, code, newPassword, confirmPassword string) (string, error) {
	emailAddr = normalizeEmail(emailAddr)
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if (emailAddr == "" && phone == "") || code == "" || newPassword == "" || confirmPassword == "" {
		return "", invalidInput("email or phone, code, new password, and confirmation are required")
	}
	if emailAddr != "" && !IsValidEmail(emailAddr) {
		return "", invalidInput("invalid email format")
	}
	if phone != "" && !IsValidPhone(phone) {
		return "", invalidInput("invalid phone number format")
	}
	if newPassword != confirmPassword {
		return "", invalidInput("passwords do not match")
	}
	if !IsStrongPassword(newPassword) {
		return "", invalidInput("password must be at least 6 characters and include uppercase, lowercase, number, and special character")
	}

	user, err := s.lookupByChannel(ctx, emailAddr, phone)
	if err != nil {
		return "", err
	}

	if err := s.codes.Consume(ctx, user.ID, code, domain.PurposePasswordReset); err != nil {
		return "", err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return "", err
	}
	return "Password has been successfully reset.", nil
}

// UpdateProfile actualiza parcialmente name, phone o avatar.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, name, phone, avatar *string) (domain.User, error) {
	if phone != nil && *phone != "" && !IsValidPhone(*phone) {
		return domain.User{}, invalidInput("invalid phone number format")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if user.IsDeleted {
		return domain.User{}, ErrUserNotFound
	}

	updated, err := s.users.UpdateProfile(ctx, userID, name, phone, avatar)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return domain.User{}, &ConflictError{}
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return updated, nil
}

// ListUsers devuelve las cuentas no borradas, más recientes primero.
func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

// UpdateRole cambia el rol de una cuenta; solo lo invoca un handler ADMIN.
func (s *AuthService) UpdateRole(ctx context.Context, userID string, role domain.Role) (domain.User, error) {
	if !role.Valid() {
		return domain.User{}, invalidInput("invalid role, allowed: USER, DOCTOR, ADMIN")
	}
	user, err := s.users.UpdateRole(ctx, userID, role)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// SoftDeleteUser marca la cuenta como borrada; queda en storage para auditoría.
func (s *AuthService) SoftDeleteUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.SoftDelete(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

func (s *AuthService) issueTokens(ctx context.Context, user domain.User) (TokenBundle, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return TokenBundle{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return TokenBundle{}, err
	}

	now := time.Now().UTC()
	accessExp, _ := s.tokens.PeekExpiry(access)
	refreshExp, _ := s.tokens.PeekExpiry(refresh)

	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     access,
		ExpiresAt: accessExp,
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return TokenBundle{}, err
	}
	if err := s.sessions.DeleteExpired(ctx, user.ID, now); err != nil {
		return TokenBundle{}, err
	}

	return TokenBundle{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresIn:  int64(s.tokens.AccessTTL().Seconds()),
		RefreshTokenExpiresIn: int64(s.tokens.RefreshTTL().Seconds()),
		AccessTokenExpiresAt:  accessExp.Unix(),
		RefreshTokenExpiresAt: refreshExp.Unix(),
	}, nil
}

func (s *AuthService) issueAndDispatch(ctx context.Context, userID, emailAddr, phone string, purpose domain.Purpose) error {
	code, err := s.codes.Issue(ctx, userID, purpose)
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(codeTTL)
	if emailAddr != "" {
		if err := s.email.SendVerificationCode(ctx, emailAddr, code, expiresAt); err != nil {
			s.logger.Error("verification email failed", zap.Error(err), zap.String("email", emailAddr))
			s.revokeCode(ctx, userID, code, purpose)
			return ErrDispatchFailed
		}
		return nil
	}
	if err := s.sms.SendVerificationCode(ctx, phone, code, expiresAt); err != nil {
		s.logger.Error("verification sms failed", zap.Error(err), zap.String("phone", phone))
		s.revokeCode(ctx, userID, code, purpose)
		return ErrDispatchFailed
	}
	return nil
}

// revokeCode descarta un código cuyo despacho falló, para que el reintento
// pueda emitir uno nuevo de inmediato sin esperar el TTL.
func (s *AuthService) revokeCode(ctx context.Context, userID, code string, purpose domain.Purpose) {
	if err := s.codes.Consume(ctx, userID, code, purpose); err != nil && !errors.Is(err, ErrCodeInvalid) {
		s.logger.Warn("undispatched code cleanup failed", zap.Error(err), zap.String("user_id", userID))
	}
}

// lookupByChannel busca por el canal provisto y trata cuentas borradas como
// inexistentes.
func (s *AuthService) lookupByChannel(ctx context.Context, emailAddr, phone string) (domain.User, error) {
	var (
		user domain.User
		err  error
	)
	if emailAddr != "" {
		user, err = s.users.GetByKey(ctx, domain.ByEmail(emailAddr))
	} else {
		user, err = s.users.GetByKey(ctx, domain.ByPhone(phone))
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if user.IsDeleted {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) findExisting(ctx context.Context, email, phone, providerID string) (domain.User, domain.LookupKey, error) {
	keys := make([]domain.LookupKey, 0, 3)
	if email != "" {
		keys = append(keys, domain.ByEmail(email))
	}
	if phone != "" {
		keys = append(keys, domain.ByPhone(phone))
	}
	if providerID != "" {
		keys = append(keys, domain.ByProvider(providerID))
	}
	for _, key := range keys {
		user, err := s.users.GetByKey(ctx, key)
		if err == nil {
			return user, key, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.LookupKey{}, err
		}
	}
	return domain.User{}, domain.LookupKey{}, pgx.ErrNoRows
}

func (s *AuthService) allowDispatch(key string) bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow(key)
}

// contactAgrees verifica que el contacto declarado en un login federado
// coincida con el registrado para esa cuenta.
func contactAgrees(user domain.User, email, phone string) bool {
	if email != "" && user.Email == email {
		return true
	}
	if phone != "" && user.Phone == phone {
		return true
	}
	return false
}

// conflictFor arma las banderas de desambiguación según la clave que chocó.
func conflictFor(existing domain.User, key domain.LookupKey) error {
	conflict := &ConflictError{ProviderLinked: existing.Federated()}
	switch key.Kind {
	case domain.LookupByEmail:
		conflict.Unverified = existing.EmailVerifiedAt == nil
	case domain.LookupByPhone:
		conflict.Unverified = existing.PhoneVerifiedAt == nil
	}
	return conflict
}
