package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultAppPort     = "8080"
	defaultAppEnv      = "local"
	defaultMongoURI    = "mongodb://localhost:27017"
	defaultMongoDB     = "storefront"
	defaultRedisAddr   = "localhost:6379"
	defaultCartDriver  = "file"
	defaultCartFile    = "storage/restaurant-cart.json"
	defaultDBDriver    = "sqlite"
	defaultSQLiteDSN   = "storefront.db"
	defaultJWTSecret   = "change-me-in-production"
	defaultStorageURL  = "http://localhost:8080/storage"
	defaultStorageRoot = "storage"
)

var (
	loadOnce sync.Once
	loadErr  error

	mu     sync.RWMutex
	values = defaultValues()
)

// Load merges config/app.json and .env over the defaults. Process
// environment variables win over both.
func Load() error {
	loadOnce.Do(func() {
		loadErr = loadFromFiles("config/app.json", ".env")
	})
	return loadErr
}

func defaultValues() map[string]string {
	return map[string]string{
		"APP_ENV":                defaultAppEnv,
		"APP_PORT":               defaultAppPort,
		"BUSINESS_ID":            "",
		"MONGO_URI":              defaultMongoURI,
		"MONGO_DB":               defaultMongoDB,
		"STORAGE_DISK":           "local",
		"STORAGE_LOCAL_ROOT":     defaultStorageRoot,
		"STORAGE_URL":            defaultStorageURL,
		"S3_REGION":              "us-east-1",
		"S3_URL_TTL":             "15m",
		"REDIS_ADDR":             defaultRedisAddr,
		"REDIS_PASSWORD":         "",
		"CART_DRIVER":            defaultCartDriver,
		"CART_FILE":              defaultCartFile,
		"DB_DRIVER":              defaultDBDriver,
		"DATABASE_DSN":           "",
		"JWT_SECRET":             defaultJWTSecret,
		"MENU_MAX_ATTEMPTS":      "3",
		"MENU_BACKOFF_BASE":      "1s",
		"MENU_BACKOFF_MAX":       "8s",
		"MENU_CALL_TIMEOUT":      "10s",
		"MENU_ORDERING_FALLBACK": "true",
		"MENU_CATEGORY_PAUSE":    "0s",
		"MENU_WATCH":             "false",
		"MENU_REFRESH":           "0s",
		"BLOB_URL_CACHE_TTL":     "1h",
		"CART_TTL":               "720h",
		"CORS_ORIGINS":           "*",
		"MAX_BODY_BYTES":         "65536",
		"CHECKOUT_RATE_LIMIT":    "10",
		"SHUTDOWN_TIMEOUT":       "10s",
		"LOG_MONGO":              "false",
	}
}

func AppEnv() string     { _ = Load(); return get("APP_ENV", defaultAppEnv) }
func AppPort() string    { _ = Load(); return get("APP_PORT", defaultAppPort) }
func BusinessID() string { _ = Load(); return get("BUSINESS_ID", "") }
func JWTSecret() string  { _ = Load(); return get("JWT_SECRET", defaultJWTSecret) }

// ── Backend ──────────────────────────────────────────────────────────────────

func MongoURI() string { _ = Load(); return get("MONGO_URI", defaultMongoURI) }
func MongoDB() string  { _ = Load(); return get("MONGO_DB", defaultMongoDB) }

func RedisAddr() string     { _ = Load(); return get("REDIS_ADDR", defaultRedisAddr) }
func RedisPassword() string { _ = Load(); return get("REDIS_PASSWORD", "") }

// ── Storage ──────────────────────────────────────────────────────────────────

func StorageDisk() string      { _ = Load(); return get("STORAGE_DISK", "local") }
func StorageLocalRoot() string { _ = Load(); return get("STORAGE_LOCAL_ROOT", defaultStorageRoot) }
func StorageURL() string       { _ = Load(); return get("STORAGE_URL", defaultStorageURL) }

func StorageS3Bucket() string   { _ = Load(); return get("S3_BUCKET", "") }
func StorageS3Region() string   { _ = Load(); return get("S3_REGION", "us-east-1") }
func StorageS3Key() string      { _ = Load(); return get("S3_KEY", "") }
func StorageS3Secret() string   { _ = Load(); return get("S3_SECRET", "") }
func StorageS3Endpoint() string { _ = Load(); return get("S3_ENDPOINT", "") }
func StorageS3URLTTL() time.Duration {
	return Duration("S3_URL_TTL", 15*time.Minute)
}

// ── Cart ─────────────────────────────────────────────────────────────────────

func CartDriver() string { _ = Load(); return strings.ToLower(get("CART_DRIVER", defaultCartDriver)) }
func CartFile() string   { _ = Load(); return get("CART_FILE", defaultCartFile) }

func DatabaseDriver() string {
	_ = Load()

	driver := strings.ToLower(get("DB_DRIVER", defaultDBDriver))
	switch driver {
	case "sqlite", "postgres", "mysql", "sqlserver":
		return driver
	default:
		return defaultDBDriver
	}
}

func DatabaseDSN() string {
	_ = Load()
	if dsn := get("DATABASE_DSN", ""); dsn != "" {
		return dsn
	}
	if DatabaseDriver() == "sqlite" {
		return defaultSQLiteDSN
	}
	return ""
}

// ── Payments / events ────────────────────────────────────────────────────────

func PaymentsURL() string     { _ = Load(); return get("PAYMENTS_URL", "") }
func PaymentsBackURL() string { _ = Load(); return get("PAYMENTS_BACK_URL", "http://localhost:8080") }
func NATSURL() string         { _ = Load(); return get("NATS_URL", "") }

// ── Typed helpers ────────────────────────────────────────────────────────────

// Int reads key as an integer, returning fallback when unset or malformed.
func Int(key string, fallback int) int {
	_ = Load()
	n, err := strconv.Atoi(get(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// Duration reads key as a time.Duration ("1s", "250ms").
func Duration(key string, fallback time.Duration) time.Duration {
	_ = Load()
	d, err := time.ParseDuration(get(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

// Bool reads key as a boolean.
func Bool(key string, fallback bool) bool {
	_ = Load()
	b, err := strconv.ParseBool(get(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

// Get reads any config key by name with an optional fallback.
func Get(key, fallback string) string {
	_ = Load()
	return get(key, fallback)
}

// Set overrides a key at runtime. Used by the CLI flags and by tests.
func Set(key, value string) {
	_ = Load()
	mu.Lock()
	values[strings.ToUpper(key)] = value
	mu.Unlock()
}

func loadFromFiles(configPath, envPath string) error {
	loaded := defaultValues()

	if err := mergeJSONConfig(configPath, loaded); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}

	if err := mergeDotEnv(envPath, loaded); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}

	mergeProcessEnv(loaded)

	mu.Lock()
	values = loaded
	mu.Unlock()

	return nil
}

func mergeJSONConfig(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var raw map[string]interface{}
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	for key, val := range raw {
		k := strings.ToUpper(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		switch v := val.(type) {
		case string:
			out[k] = strings.TrimSpace(v)
		case float64, bool:
			out[k] = fmt.Sprint(v)
		}
	}

	return nil
}

func mergeDotEnv(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		key := strings.ToUpper(strings.TrimSpace(line[:idx]))
		value := strings.Trim(strings.TrimSpace(line[idx+1:]), `"'`)
		if key == "" {
			continue
		}
		out[key] = value
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	return nil
}

func mergeProcessEnv(out map[string]string) {
	for key := range out {
		if v, ok := os.LookupEnv(key); ok {
			out[key] = v
		}
	}
	for _, key := range []string{"S3_BUCKET", "S3_KEY", "S3_SECRET", "S3_ENDPOINT", "PAYMENTS_URL", "PAYMENTS_BACK_URL", "NATS_URL"} {
		if v, ok := os.LookupEnv(key); ok {
			out[key] = v
		}
	}
}

func get(key, fallback string) string {
	mu.RLock()
	defer mu.RUnlock()

	if value := strings.TrimSpace(values[key]); value != "" {
		return value
	}

	return fallback
}
