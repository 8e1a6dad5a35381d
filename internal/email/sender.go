// internal/email/sender.go
package email

import (
	"context"
	"fmt"
	"log"
	"time"

	"social-service/internal/config"
	"social-service/internal/email/templates"

	"gopkg.in/gomail.v2"
)

// Sender delivers transactional email over SMTP. When no SMTP host is
// configured it degrades to a log-only stub so auth flows keep working in
// dev environments.
type Sender struct {
	cfg *config.Config
}

func NewSender(cfg *config.Config) *Sender {
	if cfg.SMTPHost == "" {
		log.Println("⚠️ [EMAIL] SMTP not configured — emails will be logged, not sent")
	}
	return &Sender{cfg: cfg}
}

// Send delivers one HTML email with exponential backoff: 1s, 2s, 4s.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	if s.cfg.SMTPHost == "" {
		log.Printf("📧 [STUB] To: %s | Subject: %s (%d bytes)", to, subject, len(body))
		return nil
	}

	log.Printf("📧 [SEND] To: %s | Subject: %s", to, subject)

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", s.cfg.SMTPFromName, s.cfg.SMTPFrom))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	dialer := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)

	for attempt := 0; attempt < 3; attempt++ {
		if err := dialer.DialAndSend(m); err != nil {
			delay := time.Duration(1<<attempt) * time.Second
			log.Printf("❌ [ATTEMPT %d] Failed to send email to %s: %v → retrying in %v", attempt+1, to, err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("email send cancelled: %w", ctx.Err())
			}
			continue
		}
		log.Printf("✅ [SUCCESS] Email sent to %s (Subject: %s)", to, subject)
		return nil
	}

	log.Printf("💥 [FAILED] All retries exhausted for %s", to)
	return fmt.Errorf("failed to send email to %s after 3 attempts", to)
}

// SendWelcome greets a freshly registered user.
func (s *Sender) SendWelcome(ctx context.Context, to, username string) error {
	body, err := templates.RenderWelcomeEmail(templates.WelcomeData{
		Username: username,
		AppURL:   s.cfg.AppBaseURL,
	})
	if err != nil {
		return fmt.Errorf("render welcome: %w", err)
	}
	return s.Send(ctx, to, "Welcome to Social", body)
}

// SendPasswordReset mails the single-use reset link.
func (s *Sender) SendPasswordReset(ctx context.Context, to, resetLink string) error {
	body, err := templates.RenderPasswordResetEmail(templates.PasswordResetData{
		ResetLink: resetLink,
		ExpiresIn: formatTTL(s.cfg.ResetTokenTTL),
	})
	if err != nil {
		return fmt.Errorf("render password_reset: %w", err)
	}
	return s.Send(ctx, to, "Reset Your Password", body)
}

// SendNewLogin notifies about a login from a new session.
func (s *Sender) SendNewLogin(ctx context.Context, to string, data templates.NewLoginData) error {
	body, err := templates.RenderNewLoginEmail(data)
	if err != nil {
		return fmt.Errorf("render new_login: %w", err)
	}
	return s.Send(ctx, to, "🔐 New Login to Your Account", body)
}

func formatTTL(d time.Duration) string {
	if d >= time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}
