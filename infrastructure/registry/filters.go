// Package registry reads the device registry and its transaction audit trail from MongoDB.
package registry

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"provflow/domain/provisioning"
)

func deviceFilter(serial string) bson.M {
	return bson.M{"serial": serial}
}

func recentTransactionsFilter(serial string, since time.Time) bson.M {
	return bson.M{
		"device.serial_number": serial,
		"created_at":           bson.M{"$gte": since},
	}
}

func transactionFilter(serial string, amount int, scheme provisioning.Scheme) bson.M {
	return bson.M{
		"device.serial_number": serial,
		"amount":               amount,
		"scheme":               scheme.String(),
		"status":               provisioning.TransactionStatusFired,
		"service_type":         provisioning.TransactionServiceNotify,
	}
}

func deviceTransactionsFilter(serial string) bson.M {
	return bson.M{"device.serial_number": serial}
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}}

func toDeviceRecord(doc bson.M) *provisioning.DeviceRecord {
	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		fields[k] = normalize(v)
	}
	serial, _ := fields["serial"].(string)
	return &provisioning.DeviceRecord{Serial: serial, Fields: fields}
}

func toTransaction(doc bson.M) provisioning.Transaction {
	tx := provisioning.Transaction{
		ID:          fmt.Sprint(normalize(doc["_id"])),
		Amount:      toInt(doc["amount"]),
		Scheme:      provisioning.Scheme(stringField(doc, "scheme")),
		Status:      stringField(doc, "status"),
		ServiceType: stringField(doc, "service_type"),
	}
	switch device := doc["device"].(type) {
	case bson.M:
		tx.Serial = stringField(device, "serial_number")
	case bson.D:
		tx.Serial = stringField(device.Map(), "serial_number")
	}
	switch t := doc["created_at"].(type) {
	case primitive.DateTime:
		tx.CreatedAt = t.Time().UTC()
	case time.Time:
		tx.CreatedAt = t.UTC()
	}
	return tx
}

func stringField(doc bson.M, key string) string {
	s, _ := doc[key].(string)
	return s
}

// toInt accepts the numeric encodings the audit trail has used for amounts.
func toInt(v any) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func normalize(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case bson.M:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = normalize(inner)
		}
		return out
	case bson.D:
		return normalize(t.Map())
	case bson.A:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = normalize(inner)
		}
		return out
	}
	return v
}
