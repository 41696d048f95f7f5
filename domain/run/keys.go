package run

import "sort"

// Context keys shared between workflow steps.
const (
	KeyDeviceSerial      = "device_serial"
	KeyMerchantCode      = "merchant_code"
	KeyMerchantID        = "merchant_id"
	KeyTerminalID        = "terminal_id"
	KeyStoreID           = "store_id"
	KeyFonepayTerminalID = "fonepay_terminal_id"
	KeyDPSHost           = "dps_host"
	KeyNCHLAmount        = "nchl_amount"
	KeyFonepayAmount     = "fonepay_amount"
)

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
