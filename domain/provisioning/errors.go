package provisioning

import "errors"

// Domain errors for the provisioning flow
var (
	// ErrMerchantExists occurs when the portal reports the merchant is already registered
	ErrMerchantExists = errors.New("merchant already exists")

	// ErrInvalidNotification occurs when a notification payload fails scheme validation
	ErrInvalidNotification = errors.New("invalid notification")

	// ErrUnexpectedResponse occurs when a backend answers successfully but with unexpected content
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrInvalidSerial occurs when a device serial is not 14 digits
	ErrInvalidSerial = errors.New("invalid device serial")

	// ErrUnexpectedToast occurs when a portal confirms an action with a toast that reports something else
	ErrUnexpectedToast = errors.New("unexpected toast")

	// ErrLoginNotConfirmed occurs when a portal sign-in does not reach the landing page
	ErrLoginNotConfirmed = errors.New("login not confirmed")

	// ErrUnknownScheme occurs when a payment scheme name cannot be parsed
	ErrUnknownScheme = errors.New("unknown payment scheme")
)
