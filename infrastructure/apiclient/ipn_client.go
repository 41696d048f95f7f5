package apiclient

import (
	"context"
	"fmt"

	"provflow/domain/contracts"
	"provflow/domain/provisioning"
)

// DeliveredMessage is the IPN reply for an accepted notification.
const DeliveredMessage = "notification delivered successfully"

// IPNClient posts payment notifications, one Subscription-Key per scheme.
type IPNClient struct {
	clients map[provisioning.Scheme]*Client
}

var _ contracts.NotificationSender = (*IPNClient)(nil)

// NewIPNClient builds a client per supported scheme from base, swapping in each scheme's key.
func NewIPNClient(base Options, keys map[provisioning.Scheme]string) *IPNClient {
	clients := make(map[provisioning.Scheme]*Client, len(keys))
	for _, scheme := range provisioning.AllSchemes() {
		opts := base
		opts.Auth = AuthSubscriptionKey
		opts.Secret = keys[scheme]
		client := NewClient(opts)
		if opts.Secret == "" {
			client.logger.Warn("No subscription key configured", "scheme", scheme)
		}
		clients[scheme] = client
	}
	return &IPNClient{clients: clients}
}

// Notify validates n and posts it. A reply other than DeliveredMessage yields ErrUnexpectedResponse
// together with the result.
func (c *IPNClient) Notify(ctx context.Context, n provisioning.Notification) (*provisioning.NotifyResult, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	client, ok := c.clients[n.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provisioning.ErrUnknownScheme, n.Scheme)
	}

	client.logger.API("Sending notification", "scheme", n.Scheme, "amount", n.Amount, "terminal_id", n.TerminalID)
	var raw map[string]any
	if err := client.Post(ctx, "", n.Payload(), &raw); err != nil {
		return nil, fmt.Errorf("notify %s: %w", n.Scheme, err)
	}

	result := &provisioning.NotifyResult{Scheme: n.Scheme, Amount: n.AmountValue(), Raw: raw}
	if msg, ok := raw["message"].(string); ok {
		result.Message = msg
	}
	result.Delivered = result.Message == DeliveredMessage
	if !result.Delivered {
		return result, fmt.Errorf("notify %s: %w: message %q", n.Scheme, provisioning.ErrUnexpectedResponse, result.Message)
	}
	return result, nil
}
