package provisioning

import (
	"fmt"
	"strings"

	"provflow/domain/toast"
)

// Merchant is created in the TMS portal and owns the payment identifiers notifications use.
type Merchant struct {
	AccountNumber string   `json:"account_number"`
	PAN           string   `json:"merchant_pan"`
	Branch        string   `json:"branch"`
	Schemes       []Scheme `json:"schemes"`
	MerchantCode  string   `json:"merchant_code"` // NCHL
	MerchantID    string   `json:"merchant_id"`   // Fonepay
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Address       string   `json:"address"`
	Phone         string   `json:"phone"`
}

// Supports reports whether the merchant is enrolled in scheme.
func (m Merchant) Supports(scheme Scheme) bool {
	for _, s := range m.Schemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// Validate checks the identifiers each enrolled scheme needs.
func (m Merchant) Validate() error {
	var missing []string
	if strings.TrimSpace(m.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(m.AccountNumber) == "" {
		missing = append(missing, "account_number")
	}
	if m.Supports(SchemeNCHL) && m.MerchantCode == "" {
		missing = append(missing, "merchant_code")
	}
	if m.Supports(SchemeFonepay) && m.MerchantID == "" {
		missing = append(missing, "merchant_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("merchant %q missing %s", m.Name, strings.Join(missing, ", "))
	}
	return nil
}

// Terminal holds the identifiers entered when a device is assigned to a merchant.
type Terminal struct {
	TerminalID        string `json:"terminal_id"`
	StoreID           string `json:"store_id"`
	FonepayPAN        string `json:"fonepay_pan"`
	FonepayTerminalID string `json:"fonepay_terminal_id"`
}

// ExistingMerchantPolicy decides what AddMerchant does when the portal reports a duplicate.
type ExistingMerchantPolicy int

const (
	// FailFast returns ErrMerchantExists.
	FailFast ExistingMerchantPolicy = iota
	// ReuseExisting accepts the existing merchant and continues.
	ReuseExisting
)

// ParseExistingMerchantPolicy maps "fail_fast" and "reuse_existing" to policies.
func ParseExistingMerchantPolicy(s string) (ExistingMerchantPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_fast", "failfast", "fail":
		return FailFast, nil
	case "reuse_existing", "reuseexisting", "reuse":
		return ReuseExisting, nil
	}
	return FailFast, fmt.Errorf("unknown existing merchant policy %q", s)
}

func (p ExistingMerchantPolicy) String() string {
	if p == ReuseExisting {
		return "reuse_existing"
	}
	return "fail_fast"
}

// StepOutcome is what a portal action reports back to the workflow.
type StepOutcome struct {
	Toast          *toast.CaptureResult
	MerchantReused bool
	Warning        string
}

// ToastText returns the captured toast text, or "" when none was captured.
func (o StepOutcome) ToastText() string {
	if o.Toast == nil {
		return ""
	}
	return o.Toast.Text
}
