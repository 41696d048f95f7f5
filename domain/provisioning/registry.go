package provisioning

import (
	"fmt"
	"sort"
	"time"
)

// Registry transaction values written by the notification pipeline.
const (
	TransactionStatusFired   = "FIRED"
	TransactionServiceNotify = "NOTIFY"
)

// DeviceRecord is a device document as stored in the registry.
type DeviceRecord struct {
	Serial string
	Fields map[string]any
}

// Transaction is one audit entry the registry recorded for a device.
type Transaction struct {
	ID          string
	Serial      string
	Amount      int
	Scheme      Scheme
	Status      string
	ServiceType string
	CreatedAt   time.Time
}

// ExpectedTransaction is an amount/scheme pair a run expects the registry to hold.
type ExpectedTransaction struct {
	Amount int
	Scheme Scheme
}

func (e ExpectedTransaction) key() string {
	return fmt.Sprintf("%s:%d", e.Scheme, e.Amount)
}

// MatchTransactions reports whether found holds exactly the expected amount/scheme pairs,
// regardless of order. The returned slice lists the mismatches for logs.
func MatchTransactions(found []Transaction, expected []ExpectedTransaction) (bool, []string) {
	counts := make(map[string]int)
	for _, e := range expected {
		counts[e.key()]++
	}
	for _, t := range found {
		counts[ExpectedTransaction{Amount: t.Amount, Scheme: t.Scheme}.key()]--
	}

	var problems []string
	for _, k := range sortedIntKeys(counts) {
		switch n := counts[k]; {
		case n > 0:
			problems = append(problems, fmt.Sprintf("missing %s x%d", k, n))
		case n < 0:
			problems = append(problems, fmt.Sprintf("unexpected %s x%d", k, -n))
		}
	}
	return len(problems) == 0, problems
}

func sortedIntKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
