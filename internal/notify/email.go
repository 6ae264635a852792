package notify

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"stockwatch/internal/config"
)

//go:embed templates/*.html
var emailTemplates embed.FS

const defaultEmailSubject = "StockWatch 알림"

// EmailChannel renders a templated HTML body and dispatches via SMTP.
// Port 587 implies STARTTLS; other ports follow the configured TLS flag.
type EmailChannel struct {
	cfg    config.SMTPConfig
	tmpl   *template.Template
	logger *zap.Logger
}

func NewEmailChannel(cfg config.SMTPConfig, logger *zap.Logger) *EmailChannel {
	tmpl, err := template.ParseFS(emailTemplates, "templates/*.html")
	if err != nil {
		if logger != nil {
			logger.Error("email templates failed to parse", zap.Error(err))
		}
		tmpl = nil
	}
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		if logger != nil {
			logger.Info("email channel disabled: smtp credentials missing")
		}
	}
	return &EmailChannel{cfg: cfg, tmpl: tmpl, logger: logger}
}

func (c *EmailChannel) enabled() bool {
	return c != nil && c.cfg.Host != "" && c.cfg.Username != "" && c.cfg.Password != "" && c.tmpl != nil
}

func (c *EmailChannel) Send(recipient, message string, opts SendOptions) bool {
	if !c.enabled() {
		return false
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || strings.TrimSpace(message) == "" {
		return false
	}

	subject := opts.Subject
	if subject == "" {
		subject = defaultEmailSubject
	}
	body, err := c.render(message, subject, opts.Template)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("email template render failed", zap.Error(err))
		}
		return false
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", c.cfg.SenderEmail, c.cfg.SenderName)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", message)
	m.AddAlternative("text/html", body)

	d := gomail.NewDialer(c.cfg.Host, c.cfg.Port, c.cfg.Username, c.cfg.Password)
	// gomail negotiates STARTTLS opportunistically; SSL is only forced for
	// implicit-TLS ports.
	d.SSL = c.cfg.UseTLS && c.cfg.Port != 587

	if err := d.DialAndSend(m); err != nil {
		if c.logger != nil {
			c.logger.Warn("smtp send failed", zap.String("recipient", recipient), zap.Error(err))
		}
		return false
	}
	return true
}

type emailBody struct {
	Subject    string
	Message    string
	Lines      []string
	SenderName string
	SentAt     string
}

func (c *EmailChannel) render(message, subject, templateName string) (string, error) {
	name := "notification.html"
	if templateName != "" {
		name = templateName + ".html"
	}
	if c.tmpl.Lookup(name) == nil {
		name = "notification.html"
	}
	data := emailBody{
		Subject:    subject,
		Message:    message,
		Lines:      strings.Split(message, "\n"),
		SenderName: c.cfg.SenderName,
		SentAt:     time.Now().Format("2006-01-02 15:04"),
	}
	buf := &bytes.Buffer{}
	if err := c.tmpl.ExecuteTemplate(buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
