package provisioning

import (
	"fmt"
	"strconv"
	"strings"
)

// Notification is a payment notification pushed to the IPN service for one scheme.
// NCHL uses MerchantCode and StoreID, Fonepay uses MerchantID.
type Notification struct {
	Scheme       Scheme
	Amount       string
	TerminalID   string
	StoreID      string
	MerchantCode string
	MerchantID   string
}

// NewNCHLNotification builds an NCHL notification.
func NewNCHLNotification(amount int, merchantCode, storeID, terminalID string) Notification {
	return Notification{
		Scheme:       SchemeNCHL,
		Amount:       strconv.Itoa(amount),
		MerchantCode: merchantCode,
		StoreID:      storeID,
		TerminalID:   terminalID,
	}
}

// NewFonepayNotification builds a Fonepay notification.
func NewFonepayNotification(amount int, merchantID, terminalID string) Notification {
	return Notification{
		Scheme:     SchemeFonepay,
		Amount:     strconv.Itoa(amount),
		MerchantID: merchantID,
		TerminalID: terminalID,
	}
}

// AmountValue returns the amount as an integer. Call Validate first.
func (n Notification) AmountValue() int {
	v, _ := strconv.Atoi(strings.TrimSpace(n.Amount))
	return v
}

// Validate checks the amount and the fields the scheme requires.
func (n Notification) Validate() error {
	amount := strings.TrimSpace(n.Amount)
	if !isDigits(amount) {
		return fmt.Errorf("%w: amount %q must be numeric", ErrInvalidNotification, n.Amount)
	}
	if v, err := strconv.Atoi(amount); err != nil || v <= 0 {
		return fmt.Errorf("%w: amount %q must be greater than 0", ErrInvalidNotification, n.Amount)
	}

	var required map[string]string
	switch n.Scheme {
	case SchemeNCHL:
		required = map[string]string{"storeId": n.StoreID, "terminalId": n.TerminalID, "merchantCode": n.MerchantCode}
	case SchemeFonepay:
		required = map[string]string{"merchantId": n.MerchantID, "terminalId": n.TerminalID}
	default:
		return fmt.Errorf("%w: %w", ErrInvalidNotification, ErrUnknownScheme)
	}
	for _, field := range sortedKeys(required) {
		if strings.TrimSpace(required[field]) == "" {
			return fmt.Errorf("%w: %s requires %s", ErrInvalidNotification, n.Scheme, field)
		}
	}
	return nil
}

// Payload renders the scheme-specific request body.
func (n Notification) Payload() map[string]string {
	switch n.Scheme {
	case SchemeNCHL:
		return map[string]string{
			"amount":       strings.TrimSpace(n.Amount),
			"storeId":      n.StoreID,
			"terminalId":   n.TerminalID,
			"merchantCode": n.MerchantCode,
		}
	case SchemeFonepay:
		return map[string]string{
			"amount":     strings.TrimSpace(n.Amount),
			"merchantId": n.MerchantID,
			"terminalId": n.TerminalID,
		}
	}
	return map[string]string{"amount": strings.TrimSpace(n.Amount)}
}

// NotifyResult is the IPN service's answer to a notification.
type NotifyResult struct {
	Scheme    Scheme         `json:"scheme"`
	Amount    int            `json:"amount"`
	Message   string         `json:"message"`
	Delivered bool           `json:"delivered"`
	Raw       map[string]any `json:"raw,omitempty"`
}
