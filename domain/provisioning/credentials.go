package provisioning

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Credentials are the IoT hub connection details the DPS returns for a device.
type Credentials struct {
	Serial string `json:"serial_number"`
	Key    string `json:"key"`
	Host   string `json:"host"`
}

// Validate requires a base64 key and a host.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("%w: dps response has no key", ErrUnexpectedResponse)
	}
	if _, err := base64.StdEncoding.DecodeString(c.Key); err != nil {
		return fmt.Errorf("%w: dps key is not base64: %w", ErrUnexpectedResponse, err)
	}
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: dps response has no host", ErrUnexpectedResponse)
	}
	return nil
}

// Masked returns the credentials with the key shortened for logging.
func (c Credentials) Masked() map[string]any {
	return MaskSensitive(map[string]any{"serial_number": c.Serial, "key": c.Key, "host": c.Host})
}
