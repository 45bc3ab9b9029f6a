package services

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// SMTPSettings carries the mail transport configuration.
type SMTPSettings struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// MailerService sends referrer notification emails over SMTP.
type MailerService struct {
	settings SMTPSettings
}

func NewMailerService(settings SMTPSettings) *MailerService {
	return &MailerService{settings: settings}
}

// Configured reports whether the transport has enough settings to send.
func (m *MailerService) Configured() bool {
	return m.settings.Host != "" && m.settings.User != "" && m.settings.From != ""
}

// SendCommissionQualified tells a referrer that a reward passed its grace
// period and is now payable.
func (m *MailerService) SendCommissionQualified(toEmail string, amount float64, currency string) error {
	if !m.Configured() {
		log.Warn("SMTP is not configured, qualification email not sent")
		return nil
	}

	subject := "Your referral reward is ready"
	body := fmt.Sprintf(
		"Good news!\n\nA referral reward of %.2f %s has cleared its waiting period and is now counted towards your payable balance.\n\nYou can request a payout from your referral dashboard once you reach your payout threshold.\n\nBest regards,\nThe Refwise Team",
		amount, currency,
	)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.settings.From)
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(m.settings.Host, m.settings.Port, m.settings.User, m.settings.Pass)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send qualification email: %w", err)
	}
	return nil
}
