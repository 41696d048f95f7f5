package provisioning

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// DeviceDefaults are the fixed registration form values.
type DeviceDefaults struct {
	Model    string
	Customer string
	Language string
	Batch    string
}

// Generator produces unique-looking test data for one run.
type Generator struct {
	faker *gofakeit.Faker
	rng   *rand.Rand
	now   func() time.Time
}

// NewGenerator creates a generator. A zero seed draws a random one.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		faker: gofakeit.New(seed),
		rng:   rand.New(rand.NewPCG(uint64(seed), uint64(seed>>1))),
		now:   time.Now,
	}
}

// Serial returns a 14-digit serial that never starts with 0.
func (g *Generator) Serial() string {
	return fmt.Sprintf("%d%s", g.faker.Number(1, 9), g.faker.Numerify("#############"))
}

// Device builds a registration form for serial, generating one when serial is empty.
func (g *Generator) Device(serial string, defaults DeviceDefaults) Device {
	if serial == "" {
		serial = g.Serial()
	}
	return Device{
		Serial:   serial,
		IMEI:     GenerateIMEI(g.rng),
		SIM:      "984" + g.faker.Numerify("#######"),
		Model:    defaults.Model,
		Customer: defaults.Customer,
		Language: defaults.Language,
		Batch:    defaults.Batch,
	}
}

// Merchant builds a merchant enrolled in every scheme.
func (g *Generator) Merchant(branch, address string) Merchant {
	return Merchant{
		AccountNumber: g.faker.Numerify("###############"),
		PAN:           g.faker.Numerify("PAN#####"),
		Branch:        branch,
		Schemes:       AllSchemes(),
		MerchantCode:  "M" + g.faker.Numerify("##########"),
		MerchantID:    "F" + g.faker.Numerify("##########"),
		Name:          "Test_Merchant_" + g.now().Format("20060102_150405"),
		Email:         g.faker.Email(),
		Address:       address,
		Phone:         "98" + g.faker.Numerify("########"),
	}
}

// Terminal builds assignment identifiers.
func (g *Generator) Terminal() Terminal {
	return Terminal{
		TerminalID:        "TERM_" + g.faker.Numerify("########"),
		StoreID:           "STORE_" + g.faker.Numerify("######"),
		FonepayPAN:        g.faker.CreditCardNumber(nil),
		FonepayTerminalID: "FONEPAY_" + g.faker.Numerify("########"),
	}
}

// Amount returns a transaction amount between 100 and 5000.
func (g *Generator) Amount() int {
	return g.faker.Number(100, 5000)
}
