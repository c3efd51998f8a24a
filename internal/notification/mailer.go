package notification

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
)

const (
	TemplateBookingCreated  = "booking_created"
	TemplatePaymentSuccess  = "payment_success"
	TemplatePaymentReceived = "payment_received"
)

// Mailer delivers a named template to one address.
type Mailer interface {
	Send(ctx context.Context, to, templateName string, data map[string]interface{}) error
}

var templates = template.Must(template.New("emails").Parse(`
{{define "booking_created"}}Subject: Xac nhan yeu cau dat phong {{.contract_number}}

Xin chao {{.name}},

Yeu cau dat phong {{.contract_number}} da duoc gui toi chu nha.
Tien dat coc can thanh toan: {{.deposit}} VND.
{{end}}
{{define "payment_success"}}Subject: Thanh toan thanh cong {{.transaction_id}}

Xin chao {{.name}},

Ban da thanh toan {{.amount}} VND cho {{.description}}.
Ma giao dich: {{.transaction_id}}
{{end}}
{{define "payment_received"}}Subject: Da nhan thanh toan {{.transaction_id}}

Xin chao {{.name}},

Ban da nhan {{.amount}} VND cho {{.description}}.
Ma giao dich: {{.transaction_id}}
{{end}}
`))

// Render returns the subject and body of a named template.
func Render(templateName string, data map[string]interface{}) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", templateName, err)
	}
	text := strings.TrimLeft(buf.String(), "\n")
	head, rest, _ := strings.Cut(text, "\n")
	return strings.TrimPrefix(head, "Subject: "), strings.TrimLeft(rest, "\n"), nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, to, templateName string, data map[string]interface{}) error {
	subject, body, err := Render(templateName, data)
	if err != nil {
		return err
	}

	msg := "From: " + m.cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
		body

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	// net/smtp has no context support; run it aside so the job timeout holds.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogMailer renders emails into the log. Used when SMTP is not configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(lg *slog.Logger) *LogMailer {
	return &LogMailer{logger: lg}
}

func (m *LogMailer) Send(_ context.Context, to, templateName string, data map[string]interface{}) error {
	subject, _, err := Render(templateName, data)
	if err != nil {
		return err
	}
	m.logger.Info("email (log only)", "template", templateName, "subject", subject, "to_domain", domainOf(to))
	return nil
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return address[i+1:]
	}
	return ""
}
