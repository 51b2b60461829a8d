// Copyright 2025 The Storeforge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package notify delivers store lifecycle notifications over SMTP.
//
// The ready notification is the only place generated passwords leave
// the process: the registry stores non-sensitive credential references
// only, so the mail is the one-time delivery channel. Callers treat
// notification failures as warnings, never as lifecycle failures.
package notify

import (
	"context"
	"fmt"
	"maps"
	"net/smtp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/storeforge/storeforge/internal/tenant"
)

// Notifier announces lifecycle outcomes for a store.
type Notifier interface {
	// StoreReady announces a successful provision. credentials carries
	// the one-time secrets alongside the persisted references.
	StoreReady(ctx context.Context, rec tenant.Record, credentials map[string]string) error
	// StoreFailed announces a provision that ended in failure.
	StoreFailed(ctx context.Context, rec tenant.Record, detail string) error
}

// Config holds SMTP settings. An empty Host disables mail entirely.
type Config struct {
	Host     string
	Port     int
	From     string
	To       string
	Username string
	Password string
}

// New returns an SMTP notifier when a host is configured, otherwise
// the no-op notifier.
func New(cfg Config, log *zap.Logger) Notifier {
	if cfg.Host == "" {
		return NopNotifier{}
	}
	return &SMTPNotifier{
		cfg:  cfg,
		log:  log,
		send: smtp.SendMail,
	}
}

// NopNotifier drops all notifications.
type NopNotifier struct{}

func (NopNotifier) StoreReady(context.Context, tenant.Record, map[string]string) error {
	return nil
}

func (NopNotifier) StoreFailed(context.Context, tenant.Record, string) error {
	return nil
}

// SMTPNotifier sends plain-text mail through a configured relay.
type SMTPNotifier struct {
	cfg Config
	log *zap.Logger

	// send is swapped out in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// StoreReady mails the operator address the store URLs and the
// generated credentials.
func (n *SMTPNotifier) StoreReady(_ context.Context, rec tenant.Record, credentials map[string]string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Your %s store %q is ready.\n\n", rec.Kind, rec.Name)
	fmt.Fprintf(&b, "Store URL: %s\n", rec.StoreURL)
	fmt.Fprintf(&b, "Admin URL: %s\n", rec.AdminURL)
	for _, k := range slices.Sorted(maps.Keys(credentials)) {
		fmt.Fprintf(&b, "%s: %s\n", labelFor(k), credentials[k])
	}
	b.WriteString("\nKeep these credentials safe. Change the admin password after your first login.\n")

	subject := fmt.Sprintf("Store %q is ready", rec.Name)
	if err := n.deliver(subject, b.String()); err != nil {
		return fmt.Errorf("failed to send ready notification: %w", err)
	}

	n.log.Info("sent ready notification",
		zap.String("store", rec.Name),
		zap.String("to", n.cfg.To))
	return nil
}

// StoreFailed mails the operator address the failure detail.
func (n *SMTPNotifier) StoreFailed(_ context.Context, rec tenant.Record, detail string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Provisioning of the %s store %q failed.\n\n", rec.Kind, rec.Name)
	fmt.Fprintf(&b, "Detail: %s\n", detail)
	b.WriteString("\nThe record is kept in the failed state; delete the store to clean up.\n")

	subject := fmt.Sprintf("Store %q failed to provision", rec.Name)
	if err := n.deliver(subject, b.String()); err != nil {
		return fmt.Errorf("failed to send failure notification: %w", err)
	}

	n.log.Info("sent failure notification",
		zap.String("store", rec.Name),
		zap.String("to", n.cfg.To))
	return nil
}

func (n *SMTPNotifier) deliver(subject, body string) error {
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", n.cfg.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	return n.send(addr, auth, n.cfg.From, []string{n.cfg.To}, []byte(msg.String()))
}

// labelFor turns a credential key like admin_user into a mail label.
func labelFor(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
