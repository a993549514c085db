package utils

import (
	"fmt"
	"net/smtp"
)

// Mailer delivers plain-text mail. Failure must be distinguishable from
// success so callers can roll back state that only makes sense once the
// message is out.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends mail over plain SMTP with AUTH PLAIN.
type SMTPMailer struct {
	Host string
	Port string
	User string
	Pass string
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	if m.Host == "" || m.Port == "" || m.User == "" || m.Pass == "" {
		return fmt.Errorf("smtp not configured")
	}

	addr := m.Host + ":" + m.Port
	from := m.User

	msg := "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n" +
		body + "\r\n"

	auth := smtp.PlainAuth("", m.User, m.Pass, m.Host)
	return smtp.SendMail(addr, auth, from, []string{to}, []byte(msg))
}
