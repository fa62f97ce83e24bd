package mail

import (
	"context"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"library-lending/internal/core/config"
)

type SMTP struct {
	d    *gomail.Dialer
	from string
}

func NewSMTP(c config.Mail) *SMTP {
	return &SMTP{d: gomail.NewDialer(c.Host, c.Port, c.Username, c.Password), from: c.From}
}

func (s *SMTP) Send(_ context.Context, m Message) error {
	if len(m.To) == 0 && len(m.Bcc) == 0 {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	if len(m.To) > 0 {
		msg.SetHeader("To", m.To...)
	} else {
		// 批量只用 Bcc，收件人互不可见
		msg.SetHeader("To", s.from)
	}
	if len(m.Bcc) > 0 {
		msg.SetHeader("Bcc", m.Bcc...)
	}
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", m.Body)
	return errors.Wrap(s.d.DialAndSend(msg), "smtp send")
}
