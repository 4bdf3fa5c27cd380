package mailer

import (
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/pollbox/pollbox/pkg/config"
)

// Mailer sends transactional email over an SMTP relay. Every message
// carries a plaintext part plus an HTML alternative.
type Mailer struct {
	cfg *config.SMTPConfig
}

func New(cfg *config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Message is one outbound transactional email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m *Mailer) Send(msg Message) error {
	if !m.cfg.Configured() {
		return fmt.Errorf("smtp not configured")
	}

	body, contentType, err := buildAlternative(msg.Text, msg.HTML)
	if err != nil {
		return fmt.Errorf("building message body: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(body)

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	return smtp.SendMail(m.cfg.Addr(), auth, m.cfg.From, []string{msg.To}, []byte(b.String()))
}

// buildAlternative assembles a multipart/alternative body, text part
// first so clients fall back to it.
func buildAlternative(text, html string) (string, string, error) {
	var buf strings.Builder
	w := multipart.NewWriter(&buf)

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := w.CreatePart(textHeader)
	if err != nil {
		return "", "", err
	}
	if _, err := part.Write([]byte(text)); err != nil {
		return "", "", err
	}

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=utf-8")
	part, err = w.CreatePart(htmlHeader)
	if err != nil {
		return "", "", err
	}
	if _, err := part.Write([]byte(html)); err != nil {
		return "", "", err
	}

	if err := w.Close(); err != nil {
		return "", "", err
	}

	contentType := fmt.Sprintf("multipart/alternative; boundary=%q", w.Boundary())
	return buf.String(), contentType, nil
}
