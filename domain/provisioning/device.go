package provisioning

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// SerialLength is the number of digits in a device serial.
const SerialLength = 14

// Device is a soundbox registered through the admin portal.
type Device struct {
	Serial   string `json:"serial" yaml:"serial"`
	IMEI     string `json:"imei" yaml:"imei"`
	SIM      string `json:"sim" yaml:"sim"`
	Model    string `json:"model" yaml:"model"`
	Customer string `json:"customer" yaml:"customer"`
	Language string `json:"language" yaml:"language"`
	Batch    string `json:"batch" yaml:"batch"`
}

// Validate checks the fields the registration form requires.
func (d Device) Validate() error {
	if err := ValidateSerial(d.Serial); err != nil {
		return err
	}
	if d.IMEI != "" && !ValidIMEI(d.IMEI) {
		return fmt.Errorf("imei %q fails luhn check", d.IMEI)
	}
	if strings.TrimSpace(d.Model) == "" {
		return fmt.Errorf("device %s: model is required", d.Serial)
	}
	return nil
}

// ValidateSerial requires exactly 14 digits after trimming.
func ValidateSerial(serial string) error {
	s := strings.TrimSpace(serial)
	if len(s) != SerialLength || !isDigits(s) {
		return fmt.Errorf("%w: %q", ErrInvalidSerial, serial)
	}
	return nil
}

// GenerateIMEI returns a 15-digit IMEI with a valid Luhn check digit.
func GenerateIMEI(r *rand.Rand) string {
	var b strings.Builder
	for range 14 {
		b.WriteByte(byte('0' + r.IntN(10)))
	}
	base := b.String()
	return base + string(rune('0'+LuhnCheckDigit(base)))
}

// LuhnCheckDigit computes the digit that makes payload+digit pass the Luhn check.
func LuhnCheckDigit(payload string) int {
	sum := 0
	double := true
	for i := len(payload) - 1; i >= 0; i-- {
		d := int(payload[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// ValidIMEI reports whether imei is 15 digits with a correct check digit.
func ValidIMEI(imei string) bool {
	if len(imei) != 15 || !isDigits(imei) {
		return false
	}
	return LuhnCheckDigit(imei[:14]) == int(imei[14]-'0')
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
