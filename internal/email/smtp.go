package email

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/pkg/security"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL is the public URL unsubscribe links point at.
	BaseURL string
}

type smtpService struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
	signer *security.Signer
}

// NewSMTPService sends mail over SMTP. The signer mints per-user
// unsubscribe tokens embedded in every outgoing message.
func NewSMTPService(cfg SMTPConfig, signer *security.Signer) Service {
	return &smtpService{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		signer: signer,
	}
}

func (s *smtpService) SendNotification(_ context.Context, user *model.User, n *model.Notification) error {
	subject := fmt.Sprintf("New %s %s notification", n.TopicAction.Topic, n.TopicAction.Action)
	body := fmt.Sprintf("Hi %s,\n\nYou have a new %s notification (%s).\n",
		user.Name, n.TopicAction, n.PayloadRef)
	return s.send(user, subject, body)
}

func (s *smtpService) SendDigest(_ context.Context, user *model.User, notifications []*model.Notification) error {
	subject := fmt.Sprintf("Your digest: %d update(s)", len(notifications))

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nHere is what happened since your last digest:\n\n", user.Name)
	for _, n := range notifications {
		fmt.Fprintf(&b, "- %s: %s on %s (%s)\n",
			n.CreatedAt.Format("Jan 2 15:04"), n.TopicAction, n.Key, n.PayloadRef)
	}
	return s.send(user, subject, b.String())
}

func (s *smtpService) send(user *model.User, subject, body string) error {
	unsubscribe, err := s.unsubscribeURL(user)
	if err != nil {
		return fmt.Errorf("failed to build unsubscribe link: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetAddressHeader("To", user.Email, user.Name)
	m.SetHeader("Subject", subject)
	m.SetHeader("List-Unsubscribe", "<"+unsubscribe+">")
	m.SetBody("text/plain", body+"\nUnsubscribe: "+unsubscribe+"\n")

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", user.Email, err)
	}
	return nil
}

func (s *smtpService) unsubscribeURL(user *model.User) (string, error) {
	token, err := s.signer.Sign([]byte(user.ID.String()))
	if err != nil {
		return "", err
	}
	return s.cfg.BaseURL + "/unsubscribe?token=" + token, nil
}
