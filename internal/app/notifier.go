package app

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/broker"
)

// Routing keys of the account email events consumed by the mailer.
const (
	RoutingVerificationEmail  = "account.email.verification"
	RoutingPasswordResetEmail = "account.email.password_reset"
)

// EmailEvent is the body of an account email event.
type EmailEvent struct {
	Email     string    `json:"email"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmailNotifier hands account emails to the mail service through the broker.
type EmailNotifier struct {
	publisher broker.Publisher
	baseURL   string
	logger    *slog.Logger
}

// NewEmailNotifier builds links against baseURL, the public app URL.
func NewEmailNotifier(publisher broker.Publisher, baseURL string, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		publisher: publisher,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger.With("component", "notifier"),
	}
}

func (n *EmailNotifier) SendVerification(ctx context.Context, email, token string) error {
	return n.send(ctx, RoutingVerificationEmail, email, "/verify-email/"+url.PathEscape(token))
}

func (n *EmailNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	return n.send(ctx, RoutingPasswordResetEmail, email, "/reset-password?token="+url.QueryEscape(token))
}

func (n *EmailNotifier) send(ctx context.Context, routingKey, email, path string) error {
	err := n.publisher.Publish(ctx, routingKey, EmailEvent{
		Email:     email,
		Link:      n.baseURL + path,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		n.logger.Error("failed to queue email", "routing_key", routingKey, "error", err)
		return err
	}
	n.logger.Debug("email queued", "routing_key", routingKey)
	return nil
}
