package apiclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"provflow/domain/contracts"
	"provflow/domain/provisioning"
)

const provisionEndpoint = "/ipn/provision"

type provisionRequest struct {
	SerialNumber string `json:"serial_number"`
	Action       string `json:"action"`
	Timestamp    string `json:"timestamp"`
}

type provisionResponse struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Key        string `json:"key"`
	Host       string `json:"host"`
	Message    string `json:"message"`
}

// DPSClient requests IoT hub credentials for devices.
type DPSClient struct {
	client *Client
	now    func() time.Time
}

var _ contracts.DeviceProvisioner = (*DPSClient)(nil)

// NewDPSClient wraps client, which should point at the DPS base URL.
func NewDPSClient(client *Client) *DPSClient {
	return &DPSClient{client: client, now: time.Now}
}

// Provision asks the DPS to provision serial and validates the returned credentials.
func (d *DPSClient) Provision(ctx context.Context, serial string) (*provisioning.Credentials, error) {
	if err := provisioning.ValidateSerial(serial); err != nil {
		return nil, err
	}
	req := provisionRequest{
		SerialNumber: serial,
		Action:       "provision",
		Timestamp:    d.now().UTC().Format("2006-01-02T15:04:05.000000Z"),
	}

	var resp provisionResponse
	if err := d.client.Post(ctx, provisionEndpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("dps provision %s: %w", serial, err)
	}
	if resp.Status != "" && !strings.EqualFold(resp.Status, "success") && resp.StatusCode != 200 {
		return nil, fmt.Errorf("dps provision %s: %w: status %q %s", serial, provisioning.ErrUnexpectedResponse, resp.Status, resp.Message)
	}

	creds := &provisioning.Credentials{Serial: serial, Key: resp.Key, Host: resp.Host}
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("dps provision %s: %w", serial, err)
	}
	d.client.logger.API("Device provisioned", "serial", serial, "host", creds.Host)
	return creds, nil
}

// Status returns the DPS record for serial as decoded JSON.
func (d *DPSClient) Status(ctx context.Context, serial string) (map[string]any, error) {
	var out map[string]any
	if err := d.client.Get(ctx, provisionEndpoint+"/"+serial, &out); err != nil {
		return nil, fmt.Errorf("dps status %s: %w", serial, err)
	}
	return out, nil
}
