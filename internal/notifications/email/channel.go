// Package email delivers CI/CD events by email through AWS SES.
package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"cinotify/internal/config"
	"cinotify/internal/notifications/core"
	"cinotify/internal/types"
)

// Compile-time assertion that Channel implements core.Sender.
var _ core.Sender = (*Channel)(nil)

// Channel is the email Sender.
type Channel struct {
	provider Provider
	renderer *Renderer
	fromAddr string
	fromName string
	logger   types.Logger
}

// NewChannel creates a Channel sending through provider.
func NewChannel(provider Provider, renderer *Renderer, cfg config.EmailConfig, logger types.Logger) *Channel {
	return &Channel{
		provider: provider,
		renderer: renderer,
		fromAddr: cfg.FromAddress,
		fromName: cfg.FromName,
		logger:   logger,
	}
}

// Kind implements core.Sender.
func (c *Channel) Kind() types.ChannelKind {
	return types.ChannelEmail
}

// Send renders event and transmits it to ch.Destination. A channel may
// override the sender name with options["from_name"].
func (c *Channel) Send(ctx context.Context, event *types.NotificationEvent, ch types.ChannelConfig) error {
	addr, err := mail.ParseAddress(ch.Destination)
	if err != nil {
		return types.NewAppError(types.ErrCodeChannelDeliveryFailure, "invalid recipient address", err)
	}

	rendered, err := c.renderer.Render(event)
	if err != nil {
		return types.NewAppError(types.ErrCodeChannelDeliveryFailure, "failed to render email", err)
	}

	fromName := c.fromName
	if name, ok := ch.Options["from_name"].(string); ok && strings.TrimSpace(name) != "" {
		fromName = name
	}

	msgID, err := c.provider.Send(ctx, Message{
		To:          addr.Address,
		FromAddress: c.fromAddr,
		FromName:    fromName,
		Subject:     rendered.Subject,
		BodyHTML:    rendered.BodyHTML,
		BodyText:    rendered.BodyText,
		ReferenceID: event.Metadata.RequestID,
	})
	if err != nil {
		c.logger.Warn("email delivery failed",
			"channel", ch.ChannelID,
			"dest", RedactEmail(addr.Address),
			"error", err.Error(),
		)
		return fmt.Errorf("email to %s: %w", RedactEmail(addr.Address), err)
	}

	c.logger.Info("email delivered",
		"channel", ch.ChannelID,
		"dest", RedactEmail(addr.Address),
		"provider_message_id", msgID,
	)
	return nil
}

// RedactEmail masks all but the first character of the local part:
// "john@gmail.com" becomes "j***@gmail.com". Strings without "@" are fully
// masked.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}
