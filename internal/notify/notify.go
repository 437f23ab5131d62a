package notify

import (
	"fmt"
	"net/smtp"
)

// Notifier sends a rendered email. Delivery is best effort; the caller
// decides whether to retry.
type Notifier interface {
	Send(to, subject, html string) error
}

// SMTPNotifier delivers through a plain SMTP relay.
type SMTPNotifier struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPNotifier(host, port, username, password, from string) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, username: username, password: password, from: from}
}

func (n *SMTPNotifier) Send(to, subject, html string) error {
	message := []byte("To: " + to + "\r\n" +
		"From: " + n.from + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		html + "\r\n")

	auth := smtp.PlainAuth("", n.username, n.password, n.host)
	if err := smtp.SendMail(n.host+":"+n.port, auth, n.from, []string{to}, message); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
