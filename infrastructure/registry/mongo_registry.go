package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"provflow/domain/contracts"
	"provflow/domain/provisioning"
	"provflow/infrastructure/config"
	"provflow/logging"
)

// MongoRegistry implements contracts.DeviceRegistry against the registry database.
type MongoRegistry struct {
	client  *mongo.Client
	devices *mongo.Collection
	audit   *mongo.Collection
	timeout time.Duration
	window  time.Duration
	now     func() time.Time
	logger  *logging.Logger
}

var _ contracts.DeviceRegistry = (*MongoRegistry)(nil)

// Connect dials cfg.URI, pings the primary and opens the registry collections.
func Connect(ctx context.Context, cfg config.MongoConfig) (*MongoRegistry, error) {
	logger := logging.Default().WithComponent("registry")
	logger.Database("Connecting to MongoDB", "database", cfg.Database)

	opts := options.Client().ApplyURI(cfg.URI).SetServerSelectionTimeout(cfg.Timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	r := NewMongoRegistry(db.Collection(cfg.DeviceCollection), db.Collection(cfg.AuditCollection), cfg.Timeout, cfg.TransactionWindow)
	r.client = client
	r.logger.Database("MongoDB connection successful", "database", cfg.Database)
	return r, nil
}

// NewMongoRegistry builds a registry over existing collections.
func NewMongoRegistry(devices, audit *mongo.Collection, timeout, window time.Duration) *MongoRegistry {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &MongoRegistry{
		devices: devices,
		audit:   audit,
		timeout: timeout,
		window:  window,
		now:     time.Now,
		logger:  logging.Default().WithComponent("registry"),
	}
}

// Close disconnects the client opened by Connect.
func (r *MongoRegistry) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	r.logger.Database("MongoDB connection closed")
	return r.client.Disconnect(ctx)
}

// FindDevice returns the device document for serial, or contracts.ErrNotFound.
func (r *MongoRegistry) FindDevice(ctx context.Context, serial string) (*provisioning.DeviceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc bson.M
	err := r.devices.FindOne(ctx, deviceFilter(serial)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		r.logger.Database("Device not found", "serial", serial)
		return nil, fmt.Errorf("device %s: %w", serial, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find device %s: %w", serial, err)
	}
	r.logger.Database("Found device", "serial", serial)
	return toDeviceRecord(doc), nil
}

// TransactionsForDevice returns the audit entries for serial inside the lookback window, newest first.
func (r *MongoRegistry) TransactionsForDevice(ctx context.Context, serial string) ([]provisioning.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	since := r.now().Add(-r.window).UTC()
	cursor, err := r.audit.Find(ctx, recentTransactionsFilter(serial, since), options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("transactions for %s: %w", serial, err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("transactions for %s: %w", serial, err)
	}

	txs := make([]provisioning.Transaction, len(docs))
	for i, doc := range docs {
		txs[i] = toTransaction(doc)
	}
	r.logger.Database("Loaded transactions", "serial", serial, "count", len(txs), "window", r.window)
	return txs, nil
}

// TransactionExists reports whether a fired notify transaction of amount and scheme was recorded for serial.
func (r *MongoRegistry) TransactionExists(ctx context.Context, serial string, amount int, scheme provisioning.Scheme) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc bson.M
	err := r.audit.FindOne(ctx, transactionFilter(serial, amount, scheme)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		r.logger.Database("Transaction not found", "serial", serial, "scheme", scheme, "amount", amount)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("transaction %s %s:%d: %w", serial, scheme, amount, err)
	}
	r.logger.Database("Transaction verified", "serial", serial, "scheme", scheme, "amount", amount)
	return true, nil
}

// LatestTransaction returns the newest audit entry for serial, or contracts.ErrNotFound.
func (r *MongoRegistry) LatestTransaction(ctx context.Context, serial string) (*provisioning.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc bson.M
	err := r.audit.FindOne(ctx, deviceTransactionsFilter(serial), options.FindOne().SetSort(newestFirst)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("latest transaction for %s: %w", serial, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest transaction for %s: %w", serial, err)
	}
	tx := toTransaction(doc)
	return &tx, nil
}

// VerifyTransactions checks that the window holds exactly the expected transactions.
func (r *MongoRegistry) VerifyTransactions(ctx context.Context, serial string, expected []provisioning.ExpectedTransaction) (bool, []string, error) {
	found, err := r.TransactionsForDevice(ctx, serial)
	if err != nil {
		return false, nil, err
	}
	ok, problems := provisioning.MatchTransactions(found, expected)
	if !ok {
		r.logger.Warn("Registry transactions do not match", "serial", serial, "problems", problems)
	}
	return ok, problems, nil
}
