package provisioning

import (
	"fmt"
	"strings"
)

// Scheme identifies a payment network whose notifications reach the device.
type Scheme string

const (
	SchemeNCHL    Scheme = "nchl"
	SchemeFonepay Scheme = "fonepay"
)

// AllSchemes lists the supported schemes in the order notifications are sent.
func AllSchemes() []Scheme {
	return []Scheme{SchemeNCHL, SchemeFonepay}
}

// ParseScheme accepts the scheme name in any case.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeNCHL:
		return SchemeNCHL, nil
	case SchemeFonepay:
		return SchemeFonepay, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
}

// DisplayName is the label the TMS portal uses for the scheme.
func (s Scheme) DisplayName() string {
	switch s {
	case SchemeNCHL:
		return "NCHL"
	case SchemeFonepay:
		return "Fonepay"
	}
	return string(s)
}

func (s Scheme) String() string {
	return string(s)
}
