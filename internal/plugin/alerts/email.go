// Package alerts holds the built-in alert-channel plugins and their
// factory table.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"tradehook/internal/plugin"
)

// Factories is the startup-time name → constructor table for alert
// channels.
func Factories() map[string]plugin.Factory[plugin.Alert] {
	return map[string]plugin.Factory[plugin.Alert]{
		"email": newEmail,
	}
}

type emailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Email sends operator notifications over SMTP.
type Email struct {
	cfg    emailConfig
	logger *slog.Logger

	// send is swapped out in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func newEmail(deps plugin.Deps) (plugin.Alert, error) {
	cfg := emailConfig{Port: 587}
	found, err := deps.Config.DecodePlugin("email", &cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("email requires a plugin_config block")
	}
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("email config needs host, username and password")
	}
	if len(cfg.To) == 0 {
		return nil, fmt.Errorf("email config needs at least one recipient")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}

	return &Email{cfg: cfg, logger: deps.Logger, send: smtp.SendMail}, nil
}

func (e *Email) Name() string { return "email" }

func (e *Email) Notify(_ context.Context, subject, message string) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	msg := buildMessage(e.cfg.From, e.cfg.To, subject, message)

	if err := e.send(addr, auth, e.cfg.From, e.cfg.To, msg); err != nil {
		return fmt.Errorf("sending alert email: %w", err)
	}
	e.logger.Info("alert email sent", "subject", subject, "recipients", len(e.cfg.To))
	return nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	lines := []string{
		"From: " + from,
		"To: " + strings.Join(to, ","),
		"Subject: " + subject,
		"",
		body,
	}
	return []byte(strings.Join(lines, "\r\n"))
}
