package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/memento/lib/identity"
	"github.com/ValentinKolb/memento/lib/store"
)

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// Defaults of the lock protocol.
const (
	DefaultLockTTL        = 5 * time.Minute
	DefaultLockRetries    = 3
	DefaultLockRetryDelay = time.Second
)

// ClientConfig holds everything needed to open a vault.
type ClientConfig struct {
	// Store selects the medium backend
	Store store.Implementation

	// badger backend
	DataDir string

	// redis backend
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string

	// IdentityKey is the key holding this client's identity. Clients sharing a key
	// share an identity, and the lock does not keep them apart.
	IdentityKey string

	// memory backend (0 = unlimited)
	QuotaBytes int64

	// lock protocol
	LockTTL        time.Duration
	LockRetries    int
	LockRetryDelay time.Duration

	// encodings
	Codec        string
	BlobEncoding string

	// Logging configuration
	LogLevel string
}

// DefaultClientConfig returns the configuration used when nothing is overridden.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Store:          store.ImplMemory,
		DataDir:        "data",
		RedisAddr:      "localhost:6379",
		IdentityKey:    identity.Key,
		LockTTL:        DefaultLockTTL,
		LockRetries:    DefaultLockRetries,
		LockRetryDelay: DefaultLockRetryDelay,
		Codec:          "json",
		BlobEncoding:   "dataurl",
		LogLevel:       "info",
	}
}

// Validate checks the configuration for values that cannot work.
func (c *ClientConfig) Validate() error {
	switch c.Store {
	case store.ImplMemory, store.ImplBadger, store.ImplRedis:
	default:
		return fmt.Errorf("invalid store %q (expected one of: memory, badger, redis)", c.Store)
	}
	if c.IdentityKey == "" {
		return fmt.Errorf("identity key must not be empty")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive, got %s", c.LockTTL)
	}
	if c.LockRetries < 0 {
		return fmt.Errorf("lock retries must not be negative, got %d", c.LockRetries)
	}
	if c.LockRetryDelay < 0 {
		return fmt.Errorf("lock retry delay must not be negative, got %s", c.LockRetryDelay)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Store")
	addField("Backend", string(c.Store))
	switch c.Store {
	case store.ImplBadger:
		addField("Data Directory", c.DataDir)
	case store.ImplRedis:
		addField("Address", c.RedisAddr)
		addField("Database", fmt.Sprintf("%d", c.RedisDB))
		addField("Namespace", c.RedisNamespace)
	case store.ImplMemory:
		if c.QuotaBytes > 0 {
			addField("Quota", fmt.Sprintf("%d bytes", c.QuotaBytes))
		} else {
			addField("Quota", "unlimited")
		}
	}

	addSection("Client")
	addField("Identity Key", c.IdentityKey)

	addSection("Lock")
	addField("TTL", c.LockTTL.String())
	addField("Retries", fmt.Sprintf("%d", c.LockRetries))
	addField("Retry Delay", c.LockRetryDelay.String())

	addSection("Encoding")
	addField("Document Codec", c.Codec)
	addField("Blob Encoding", c.BlobEncoding)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
