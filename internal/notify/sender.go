package notify

import (
	"context"
	"errors"
	"time"
)

// EmailSender define la interfaz para envío de correos del flujo de cuentas.
type EmailSender interface {
	SendVerificationCode(ctx context.Context, toEmail, code string, expiresAt time.Time) error
	SendPasswordResetCode(ctx context.Context, toEmail, code string, expiresAt time.Time) error
	SendVerificationSuccess(ctx context.Context, toEmail string) error
}

// SMSSender define la interfaz equivalente para SMS.
type SMSSender interface {
	SendVerificationCode(ctx context.Context, toPhone, code string, expiresAt time.Time) error
	SendPasswordResetCode(ctx context.Context, toPhone, code string, expiresAt time.Time) error
	SendVerificationSuccess(ctx context.Context, toPhone string) error
}

type disabledEmailSender struct {
	reason string
}

func NewDisabledEmailSender(reason string) EmailSender {
	return &disabledEmailSender{reason: reason}
}

func (s *disabledEmailSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func (s *disabledEmailSender) SendVerificationCode(context.Context, string, string, time.Time) error {
	return s.err()
}

func (s *disabledEmailSender) SendPasswordResetCode(context.Context, string, string, time.Time) error {
	return s.err()
}

func (s *disabledEmailSender) SendVerificationSuccess(context.Context, string) error {
	return s.err()
}

type disabledSMSSender struct {
	reason string
}

func NewDisabledSMSSender(reason string) SMSSender {
	return &disabledSMSSender{reason: reason}
}

func (s *disabledSMSSender) err() error {
	if s.reason == "" {
		return errors.New("sms sender disabled")
	}
	return errors.New(s.reason)
}

func (s *disabledSMSSender) SendVerificationCode(context.Context, string, string, time.Time) error {
	return s.err()
}

func (s *disabledSMSSender) SendPasswordResetCode(context.Context, string, string, time.Time) error {
	return s.err()
}

func (s *disabledSMSSender) SendVerificationSuccess(context.Context, string) error {
	return s.err()
}
