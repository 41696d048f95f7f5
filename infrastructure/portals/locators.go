package portals

import "provflow/domain/contracts"

func textbox(name string) contracts.Target { return contracts.ByRole("textbox", name) }
func button(name string) contracts.Target  { return contracts.ByRole("button", name) }
func option(name string) contracts.Target  { return contracts.ByRole("option", name) }
func combobox(name string) contracts.Target {
	return contracts.ByRole("combobox", name)
}

// Admin portal.
var (
	adminEmail        = textbox("Email Address")
	adminPassword     = textbox("Password")
	adminSignIn       = contracts.ByRoleExact("button", "Sign in")
	adminLanding      = contracts.ByCSS("div:has-text('Koili')")
	adminNavDevice    = button("Device")
	adminAddDevice    = button("Add")
	adminSIM          = textbox("SIM")
	adminModel        = combobox("Model")
	adminCustomer     = contracts.ByCSS("#select-customer")
	adminLanguage     = combobox("Language")
	adminSerial       = textbox("Serial Number")
	adminIMEI         = textbox("IMEI")
	adminBatch        = textbox("Batch")
	adminSubmit       = button("Add")
	adminConfirmation = contracts.ByCSS("[id='1']")
)

// TMS portal.
var (
	tmsUsername = textbox("Username")
	tmsPassword = textbox("password")
	tmsSignIn   = button("Sign In")
	tmsNavIPN   = contracts.ByRoleExact("button", "IPN")

	tmsNavMerchant = contracts.ByRoleExact("button", "Merchant")
	tmsSyncIPN     = button("Sync IPN")

	tmsAddMerchant     = button("Add Merchant")
	tmsAccountNumber   = textbox("Account Number")
	tmsMerchantPAN     = textbox("Merchant PAN")
	tmsBranch          = combobox("Branch")
	tmsScheme          = combobox("Scheme")
	tmsMerchantCode    = textbox("Merchant Code")
	tmsMerchantID      = textbox("Merchant .I.D.")
	tmsMerchantIDLabel = contracts.Target{Label: "Merchant ID"}
	tmsMerchantName    = textbox("Name")
	tmsMerchantEmail   = textbox("Email")
	tmsMerchantAddress = textbox("Address")
	tmsMerchantPhone   = textbox("Phone")
	tmsMerchantSubmit  = button("Add")
	tmsBody            = contracts.ByCSS("body")

	tmsExpandMerchant = contracts.ByCSS("#expand-more-button-0")
	tmsAssignedIPNs   = contracts.ByRole("menuitem", "Assigned IPNs")
	tmsAssignIPN      = button("Assign IPN")
	tmsSearchIPN      = textbox("Search IPN")
	tmsTerminalID     = textbox("Terminal I.D.")
	tmsStoreID        = textbox("Store I.D.")
	tmsFonepayPAN     = textbox("Fonepay Pan Number")
	tmsUpdate         = button("Update")
	tmsAssign         = button("Assign")
)

// tmsDeviceRow is the IPN table row listing serial.
func tmsDeviceRow(serial string) contracts.Target {
	return contracts.Target{Role: "row"}.Filter(serial)
}

func tmsRowCheckbox(row contracts.Target) contracts.Target {
	return contracts.Target{Label: "Select row"}.In(row)
}

func tmsRowSchemaIcon(row contracts.Target) contracts.Target {
	return contracts.Target{TestID: "SchemaIcon"}.In(row)
}

// Toast texts, matched case-insensitively.
const (
	toastDeviceAdded      = "device added"
	toastMerchantCreated  = "merchant created successfully"
	toastMerchantExists   = "merchant already exists"
	toastDifferentPAN     = "already associated with a different pan"
	toastSyncUpToDate     = "everything up to date"
	toastSyncAlreadyUpTo  = "everything is already up-to"
	toastIdentifiersAdded = "identifiers added"
	toastDeviceAssigned   = "device assigned successfully"
)
