package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"provflow/database"
	"provflow/domain/provisioning"
	"provflow/logging"
)

// AppConfig holds application-wide configuration, built once in main and passed down.
type AppConfig struct {
	Environment string `yaml:"environment"`
	HTTPAddr    string `yaml:"http_addr"`
	HTTPLogPath string `yaml:"http_log_path"`
	ReportDir   string `yaml:"report_dir"`

	Portals  PortalsConfig    `yaml:"portals"`
	Browser  BrowserConfig    `yaml:"browser"`
	API      APIConfig        `yaml:"api"`
	Mongo    MongoConfig      `yaml:"mongo"`
	Toast    ToastConfig      `yaml:"toast"`
	Flow     FlowConfig       `yaml:"flow"`
	Database *database.Config `yaml:"database"`
	Logging  *logging.Config  `yaml:"logging"`
}

// PortalConfig locates one web portal and the account used to sign in.
type PortalConfig struct {
	URL      string        `yaml:"url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// PortalsConfig groups the admin and TMS portals.
type PortalsConfig struct {
	Admin PortalConfig `yaml:"admin"`
	TMS   PortalConfig `yaml:"tms"`
}

// BrowserConfig controls the automated browser.
type BrowserConfig struct {
	Headless       bool          `yaml:"headless"`
	SlowMo         time.Duration `yaml:"slow_mo"`
	Timeout        time.Duration `yaml:"timeout"`
	ViewportWidth  int           `yaml:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height"`
	// DevToolsURL is the websocket of an already running Chrome, used by watch-toast.
	DevToolsURL string `yaml:"devtools_url"`
}

// APIConfig configures the provisioning and notification services.
type APIConfig struct {
	DPSBaseURL string        `yaml:"dps_base_url"`
	DPSToken   string        `yaml:"dps_token"`
	IPNURL     string        `yaml:"ipn_url"`
	NCHLKey    string        `yaml:"nchl_key"`
	FonepayKey string        `yaml:"fonepay_key"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// KeyFor returns the subscription key used for scheme.
func (c APIConfig) KeyFor(scheme provisioning.Scheme) string {
	if scheme == provisioning.SchemeFonepay {
		return c.FonepayKey
	}
	return c.NCHLKey
}

// MongoConfig locates the device registry.
type MongoConfig struct {
	URI               string        `yaml:"uri"`
	Database          string        `yaml:"database"`
	DeviceCollection  string        `yaml:"device_collection"`
	AuditCollection   string        `yaml:"audit_collection"`
	Timeout           time.Duration `yaml:"timeout"`
	TransactionWindow time.Duration `yaml:"transaction_window"`
}

// Enabled reports whether registry verification is configured.
func (c MongoConfig) Enabled() bool {
	return strings.TrimSpace(c.URI) != ""
}

// ToastConfig tunes toast capture.
type ToastConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	SliceTimeout time.Duration `yaml:"slice_timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	TextTimeout  time.Duration `yaml:"text_timeout"`
}

// FlowConfig holds provisioning flow inputs and pacing.
type FlowConfig struct {
	Serial         string        `yaml:"serial"`
	Model          string        `yaml:"model"`
	Customer       string        `yaml:"customer"`
	Language       string        `yaml:"language"`
	Batch          string        `yaml:"batch"`
	Branch         string        `yaml:"branch"`
	Address        string        `yaml:"address"`
	MerchantPolicy string        `yaml:"merchant_policy"`
	Seed           int64         `yaml:"seed"`
	SyncWait       time.Duration `yaml:"sync_wait"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	VerifyAttempts int           `yaml:"verify_attempts"`
	VerifyDelay    time.Duration `yaml:"verify_delay"`
}

// DeviceDefaults returns the fixed registration form values.
func (c FlowConfig) DeviceDefaults() provisioning.DeviceDefaults {
	return provisioning.DeviceDefaults{
		Model:    c.Model,
		Customer: c.Customer,
		Language: c.Language,
		Batch:    c.Batch,
	}
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	dbConfig := database.DefaultConfig()
	return &AppConfig{
		Environment: "staging",
		HTTPAddr:    ":8080",
		ReportDir:   "./reports",
		Portals: PortalsConfig{
			Admin: PortalConfig{Timeout: 30 * time.Second},
			TMS:   PortalConfig{Timeout: 30 * time.Second},
		},
		Browser: BrowserConfig{
			Headless:       true,
			Timeout:        30 * time.Second,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		},
		API: APIConfig{
			IPNURL:     "https://ipn-dev.qrsoundboxnepal.com/api/v1-stg/notify",
			UserAgent:  "DeviceTransactionAutomation/1.0",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
		},
		Mongo: MongoConfig{
			Database:          "koili_staging",
			DeviceCollection:  "device_registry",
			AuditCollection:   "registry_audit",
			Timeout:           10 * time.Second,
			TransactionWindow: 5 * time.Minute,
		},
		Toast: ToastConfig{
			Timeout:      5 * time.Second,
			SliceTimeout: 1500 * time.Millisecond,
			ProbeTimeout: 300 * time.Millisecond,
			TextTimeout:  2 * time.Second,
		},
		Flow: FlowConfig{
			Model:          "ET389 static",
			Language:       "English",
			Batch:          "testautomation",
			Branch:         "ACHHAM",
			Address:        "Kathmandu",
			MerchantPolicy: provisioning.FailFast.String(),
			SyncWait:       3 * time.Second,
			SettleDelay:    15 * time.Second,
			VerifyAttempts: 3,
			VerifyDelay:    5 * time.Second,
		},
		Database: &dbConfig,
		Logging:  logging.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, then the YAML file named by CONFIG_FILE
// when set, then environment variables.
func Load() (*AppConfig, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAppConfigFromEnv loads configuration from defaults and environment variables only.
func LoadAppConfigFromEnv() *AppConfig {
	cfg := Default()
	applyEnv(cfg)
	return cfg
}

func applyEnv(cfg *AppConfig) {
	cfg.Environment = getEnvWithDefault("ENVIRONMENT", cfg.Environment)
	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.HTTPLogPath = getEnvWithDefault("HTTP_LOG_PATH", cfg.HTTPLogPath)
	cfg.ReportDir = getEnvWithDefault("REPORT_DIR", cfg.ReportDir)

	admin := &cfg.Portals.Admin
	admin.URL = getEnvWithDefault("ADMIN_PORTAL_URL", admin.URL)
	admin.Username = getEnvWithDefault("ADMIN_USERNAME", admin.Username)
	admin.Password = getEnvWithDefault("ADMIN_PASSWORD", admin.Password)
	tms := &cfg.Portals.TMS
	tms.URL = getEnvWithDefault("TMS_PORTAL_URL", tms.URL)
	tms.Username = getEnvWithDefault("TMS_USERNAME", tms.Username)
	tms.Password = getEnvWithDefault("TMS_PASSWORD", tms.Password)

	b := &cfg.Browser
	b.Headless = getEnvBoolWithDefault("HEADLESS", b.Headless)
	b.SlowMo = getEnvDurationWithDefault("BROWSER_SLOW_MO", b.SlowMo)
	b.Timeout = getEnvDurationWithDefault("BROWSER_TIMEOUT", b.Timeout)
	b.DevToolsURL = getEnvWithDefault("CHROME_DEVTOOLS_URL", b.DevToolsURL)

	api := &cfg.API
	api.DPSBaseURL = getEnvWithDefault("DPS_API_URL", api.DPSBaseURL)
	api.DPSToken = getEnvWithDefault("DPS_API_TOKEN", api.DPSToken)
	api.IPNURL = getEnvWithDefault("IPN_API_URL", api.IPNURL)
	api.NCHLKey = getEnvWithDefault("NCHL_API_KEY", api.NCHLKey)
	api.FonepayKey = getEnvWithDefault("FONEPAY_API_KEY", api.FonepayKey)
	api.Timeout = getEnvDurationWithDefault("API_TIMEOUT", api.Timeout)
	api.MaxRetries = getEnvIntWithDefault("MAX_RETRIES", api.MaxRetries)
	api.RetryDelay = getEnvDurationWithDefault("API_RETRY_DELAY", api.RetryDelay)

	m := &cfg.Mongo
	m.URI = getEnvWithDefault("MONGO_URI", m.URI)
	m.Database = getEnvWithDefault("MONGO_DB", m.Database)
	m.Timeout = getEnvDurationWithDefault("MONGO_TIMEOUT", m.Timeout)

	t := &cfg.Toast
	t.Timeout = getEnvDurationWithDefault("TOAST_TIMEOUT", t.Timeout)
	t.SliceTimeout = getEnvDurationWithDefault("TOAST_SLICE_TIMEOUT", t.SliceTimeout)
	t.ProbeTimeout = getEnvDurationWithDefault("TOAST_PROBE_TIMEOUT", t.ProbeTimeout)

	f := &cfg.Flow
	f.Serial = getEnvWithDefault("DEVICE_SERIAL", f.Serial)
	f.Customer = getEnvWithDefault("DEVICE_CUSTOMER", f.Customer)
	f.Branch = getEnvWithDefault("MERCHANT_BRANCH", f.Branch)
	f.MerchantPolicy = getEnvWithDefault("MERCHANT_POLICY", f.MerchantPolicy)
	f.Seed = int64(getEnvIntWithDefault("DATA_SEED", int(f.Seed)))
	f.SettleDelay = getEnvDurationWithDefault("SETTLE_DELAY", f.SettleDelay)

	if cfg.Database == nil {
		dbConfig := database.DefaultConfig()
		cfg.Database = &dbConfig
	}
	applyDatabaseEnv(cfg.Database)
	if cfg.Logging == nil {
		cfg.Logging = logging.DefaultConfig()
	}
	applyLoggingEnv(cfg.Logging)
}

func applyDatabaseEnv(c *database.Config) {
	c.Path = getEnvWithDefault("DB_PATH", c.Path)
	c.MaxOpenConns = getEnvIntWithDefault("DB_MAX_OPEN_CONNS", c.MaxOpenConns)
	c.MaxIdleConns = getEnvIntWithDefault("DB_MAX_IDLE_CONNS", c.MaxIdleConns)
	c.ConnMaxLifetime = getEnvDurationWithDefault("DB_CONN_MAX_LIFETIME", c.ConnMaxLifetime)
	c.ConnMaxIdleTime = getEnvDurationWithDefault("DB_CONN_MAX_IDLE_TIME", c.ConnMaxIdleTime)
	c.BusyTimeoutMs = getEnvIntWithDefault("DB_BUSY_TIMEOUT_MS", c.BusyTimeoutMs)
	c.EnableForeignKeys = getEnvBoolWithDefault("DB_ENABLE_FOREIGN_KEYS", c.EnableForeignKeys)
	c.EnableWAL = getEnvBoolWithDefault("DB_ENABLE_WAL", c.EnableWAL)
}

func applyLoggingEnv(c *logging.Config) {
	c.Level = getEnvWithDefault("LOG_LEVEL", c.Level)
	c.Format = getEnvWithDefault("LOG_FORMAT", c.Format)
	c.Output = getEnvWithDefault("LOG_OUTPUT", c.Output)
}

// Validate checks values that would otherwise fail late.
func (c *AppConfig) Validate() error {
	var errs []error
	if _, err := provisioning.ParseExistingMerchantPolicy(c.Flow.MerchantPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Toast.Timeout <= 0 {
		errs = append(errs, errors.New("toast.timeout must be positive"))
	}
	if c.API.MaxRetries < 0 {
		errs = append(errs, errors.New("api.max_retries must not be negative"))
	}
	if c.Flow.VerifyAttempts < 1 {
		errs = append(errs, errors.New("flow.verify_attempts must be at least 1"))
	}
	if c.Flow.Serial != "" {
		if err := provisioning.ValidateSerial(c.Flow.Serial); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MissingForFlow lists the settings the full provisioning flow cannot run without.
func (c *AppConfig) MissingForFlow() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("ADMIN_PORTAL_URL", c.Portals.Admin.URL)
	check("ADMIN_USERNAME", c.Portals.Admin.Username)
	check("ADMIN_PASSWORD", c.Portals.Admin.Password)
	check("TMS_PORTAL_URL", c.Portals.TMS.URL)
	check("TMS_USERNAME", c.Portals.TMS.Username)
	check("TMS_PASSWORD", c.Portals.TMS.Password)
	check("DPS_API_URL", c.API.DPSBaseURL)
	check("IPN_API_URL", c.API.IPNURL)
	check("DEVICE_CUSTOMER", c.Flow.Customer)
	return missing
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v string, def bool) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// Helper functions for environment variable parsing.
func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return parseBool(value, defaultValue)
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
