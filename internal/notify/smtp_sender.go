package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender envía correos del flujo de cuentas vía SMTP.
type SMTPSender struct {
	host        string
	port        int
	username    string
	password    string
	from        string
	fromName    string
	companyName string
	useTLS      bool
}

func NewSMTPSender(host string, port int, username, password, from, fromName, companyName string, useTLS bool) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	if strings.TrimSpace(companyName) == "" {
		companyName = "Hospital"
	}
	return &SMTPSender{
		host:        host,
		port:        port,
		username:    username,
		password:    password,
		from:        from,
		fromName:    fromName,
		companyName: companyName,
		useTLS:      useTLS,
	}, nil
}

func (s *SMTPSender) SendVerificationCode(_ context.Context, toEmail, code string, expiresAt time.Time) error {
	subject := fmt.Sprintf("Verify your email - %s", s.companyName)
	body := fmt.Sprintf(
		"Hello,\n\nYour verification code is: %s\nThis code will expire at %s UTC.\n\nThank you,\nThe %s Team\n",
		code,
		expiresAt.UTC().Format(time.RFC3339),
		s.companyName,
	)
	return s.send(toEmail, subject, body)
}

func (s *SMTPSender) SendPasswordResetCode(_ context.Context, toEmail, code string, expiresAt time.Time) error {
	subject := fmt.Sprintf("Reset your password - %s", s.companyName)
	body := fmt.Sprintf(
		"Hello,\n\nWe received a request to reset your password. Use this code to proceed: %s\nThe code is valid until %s UTC. If you didn't request this, you can safely ignore this email.\n\nThank you,\nThe %s Team\n",
		code,
		expiresAt.UTC().Format(time.RFC3339),
		s.companyName,
	)
	return s.send(toEmail, subject, body)
}

func (s *SMTPSender) SendVerificationSuccess(_ context.Context, toEmail string) error {
	subject := fmt.Sprintf("Email verified - %s", s.companyName)
	body := fmt.Sprintf(
		"Hello,\n\nYour email %s has been verified successfully. Welcome aboard!\n\nThank you,\nThe %s Team\n",
		toEmail,
		s.companyName,
	)
	return s.send(toEmail, subject, body)
}

func (s *SMTPSender) send(toEmail, subject, body string) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}

	msg := buildMessage(s.from, s.fromName, toEmail, subject, body)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if s.useTLS {
		conn, err := tls.Dial("tcp", addr, &tls.Config{
			ServerName: s.host,
		})
		if err != nil {
			return err
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.host)
		if err != nil {
			return err
		}
		defer client.Quit()

		if auth != nil {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
		if err := client.Mail(s.from); err != nil {
			return err
		}
		if err := client.Rcpt(toEmail); err != nil {
			return err
		}
		writer, err := client.Data()
		if err != nil {
			return err
		}
		if _, err := writer.Write([]byte(msg)); err != nil {
			_ = writer.Close()
			return err
		}
		return writer.Close()
	}

	return smtp.SendMail(addr, auth, s.from, []string{toEmail}, []byte(msg))
}

func buildMessage(from, fromName, to, subject, body string) string {
	fromHeader := from
	if strings.TrimSpace(fromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}

	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}
