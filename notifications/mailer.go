package notifications

import (
	"CareChain/config"
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer emails operator alerts, such as orders that could not be routed to
// a technician.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	to     []string
	log    *zap.Logger
}

// NewMailer returns a Mailer for cfg. When SMTP_HOST or OPS_ALERT_EMAIL is
// unset the returned Mailer only logs alerts.
func NewMailer(cfg config.MailConfig, log *zap.Logger) *Mailer {
	m := &Mailer{from: cfg.From, log: log}
	if m.from == "" {
		m.from = cfg.User
	}
	for _, addr := range strings.Split(cfg.OpsAlerts, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			m.to = append(m.to, addr)
		}
	}
	if cfg.Host != "" && len(m.to) > 0 {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	} else {
		log.Info("smtp not configured, operator alerts will only be logged")
	}
	return m
}

func (m *Mailer) Enabled() bool {
	return m.dialer != nil
}

// Alert sends subject and body to the operator addresses.
func (m *Mailer) Alert(ctx context.Context, subject, body string) error {
	m.log.Warn("operator alert", zap.String("subject", subject), zap.String("body", body))
	if m.dialer == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := m.compose(subject, body)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send alert %q: %w", subject, err)
	}
	return nil
}

func (m *Mailer) compose(subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", "[CareChain] "+subject)

	msg.SetBody("text/plain", body)
	htmlBody := `
	<!DOCTYPE html>
	<html>
	<head>
		<title>` + html.EscapeString(subject) + `</title>
		<style>
			body {
				font-family: Arial, sans-serif;
				background-color: #f4f4f4;
			}
			.container {
				background-color: #ffffff;
				margin: 20px auto;
				padding: 20px;
				border-radius: 8px;
				max-width: 600px;
			}
			pre {
				white-space: pre-wrap;
				color: #333333;
			}
		</style>
	</head>
	<body>
		<div class="container">
			<h1>` + html.EscapeString(subject) + `</h1>
			<pre>` + html.EscapeString(body) + `</pre>
		</div>
	</body>
	</html>
	`
	msg.AddAlternative("text/html", htmlBody)
	return msg
}
