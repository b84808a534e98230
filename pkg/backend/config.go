package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shashiranjanraj/storefront/config"
)

// Config identifies one backend project: the document database, the blob
// disk and the optional URL cache.
type Config struct {
	MongoURI    string
	Database    string
	StorageDisk string

	RedisAddr     string
	RedisPassword string

	// DialTimeout bounds connect + ping. Zero means 10s.
	DialTimeout time.Duration
}

// ConfigFromEnv builds a Config from the loaded configuration.
func ConfigFromEnv() Config {
	return Config{
		MongoURI:      config.MongoURI(),
		Database:      config.MongoDB(),
		StorageDisk:   config.StorageDisk(),
		RedisAddr:     config.RedisAddr(),
		RedisPassword: config.RedisPassword(),
		DialTimeout:   config.Duration("MENU_CALL_TIMEOUT", 10*time.Second),
	}
}

// Fingerprint identifies the config. Two configs with the same fingerprint
// share one handle.
func (c Config) Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		c.MongoURI, c.Database, c.StorageDisk, c.RedisAddr, c.RedisPassword,
	}, "\x00")))
	return hex.EncodeToString(sum[:8])
}

// Validate rejects configs no dial could succeed with.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.MongoURI, "mongodb://") && !strings.HasPrefix(c.MongoURI, "mongodb+srv://") {
		return &Error{Op: "backend.validate", Kind: KindInvalidConfig, Err: fmt.Errorf("mongo uri %q has no mongodb scheme", redact(c.MongoURI))}
	}
	if c.Database == "" {
		return &Error{Op: "backend.validate", Kind: KindInvalidConfig, Err: fmt.Errorf("database name is empty")}
	}
	return nil
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout <= 0 {
		return 10 * time.Second
	}
	return c.DialTimeout
}

// redact drops credentials from a connection string before it is logged.
func redact(uri string) string {
	at := strings.LastIndex(uri, "@")
	scheme := strings.Index(uri, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return uri
	}
	return uri[:scheme+3] + "***" + uri[at:]
}
