package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GatewaySMSSender envía SMS mediante un gateway HTTP con POST de formulario.
type GatewaySMSSender struct {
	baseURL     string
	apiKey      string
	userID      string
	password    string
	senderID    string
	companyName string
	client      *http.Client
}

func NewGatewaySMSSender(baseURL, apiKey, userID, password, senderID, companyName string) (*GatewaySMSSender, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("sms gateway url is required")
	}
	if strings.TrimSpace(companyName) == "" {
		companyName = "Hospital"
	}
	return &GatewaySMSSender{
		baseURL:     baseURL,
		apiKey:      apiKey,
		userID:      userID,
		password:    password,
		senderID:    senderID,
		companyName: companyName,
		client:      &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *GatewaySMSSender) SendVerificationCode(ctx context.Context, toPhone, code string, expiresAt time.Time) error {
	body := fmt.Sprintf("%s: your verification code is %s. It expires at %s UTC.",
		s.companyName, code, expiresAt.UTC().Format("15:04:05"))
	return s.send(ctx, toPhone, body)
}

func (s *GatewaySMSSender) SendPasswordResetCode(ctx context.Context, toPhone, code string, expiresAt time.Time) error {
	body := fmt.Sprintf("%s: your password reset code is %s. It expires at %s UTC.",
		s.companyName, code, expiresAt.UTC().Format("15:04:05"))
	return s.send(ctx, toPhone, body)
}

func (s *GatewaySMSSender) SendVerificationSuccess(ctx context.Context, toPhone string) error {
	body := fmt.Sprintf("%s: your phone number %s has been verified successfully. Welcome aboard!",
		s.companyName, toPhone)
	return s.send(ctx, toPhone, body)
}

func (s *GatewaySMSSender) send(ctx context.Context, toPhone, body string) error {
	if strings.TrimSpace(toPhone) == "" {
		return fmt.Errorf("to phone is required")
	}

	form := url.Values{}
	form.Set("userid", s.userID)
	form.Set("password", s.password)
	form.Set("senderid", s.senderID)
	form.Set("msgType", "text")
	form.Set("msg", body)
	form.Set("mobile", toPhone)
	form.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms gateway error: %s", string(respBody))
	}
	return nil
}
