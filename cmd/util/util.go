package util

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ValentinKolb/memento/lib/common"
	"github.com/ValentinKolb/memento/lib/store"
	"github.com/ValentinKolb/memento/lib/vault"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

var plog = logger.GetLogger("cli")

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the medium, lock and encoding flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	defaults := common.DefaultClientConfig()

	key := "store"
	cmd.PersistentFlags().String(key, string(store.ImplBadger), WrapString("The medium to use (memory, badger, redis). The memory medium is lost when the command exits"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, defaults.DataDir, WrapString("Directory of the badger medium"))

	key = "redis-addr"
	cmd.PersistentFlags().String(key, defaults.RedisAddr, WrapString("Address of the redis medium"))

	key = "redis-password"
	cmd.PersistentFlags().String(key, "", WrapString("Password of the redis medium"))

	key = "redis-db"
	cmd.PersistentFlags().Int(key, defaults.RedisDB, WrapString("Database number of the redis medium"))

	key = "redis-namespace"
	cmd.PersistentFlags().String(key, "", WrapString("Prefix for all redis keys, allows several vaults in one redis database"))

	key = "quota"
	cmd.PersistentFlags().Int64(key, 0, WrapString("Capacity of the memory medium in bytes (0 = unlimited)"))

	key = "identity-key"
	cmd.PersistentFlags().String(key, defaults.IdentityKey, WrapString("Key holding the identity of this client. Clients with the same key share an identity and are not excluded from each other by the lock"))

	key = "lock-ttl"
	cmd.PersistentFlags().Duration(key, defaults.LockTTL, WrapString("How long an acquired lock stays valid"))

	key = "lock-retries"
	cmd.PersistentFlags().Int(key, defaults.LockRetries, WrapString("How many times to retry a busy lock before giving up"))

	key = "lock-retry-delay"
	cmd.PersistentFlags().Duration(key, defaults.LockRetryDelay, WrapString("Delay between two lock attempts"))

	key = "codec"
	cmd.PersistentFlags().String(key, defaults.Codec, WrapString("Codec of the inventory document (json, gob). Only json is readable by the web client"))

	key = "blob-encoding"
	cmd.PersistentFlags().String(key, defaults.BlobEncoding, WrapString("Encoding of media payloads (dataurl, raw, zstd). Only dataurl is readable by the web client"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("memento")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() common.ClientConfig {
	return common.ClientConfig{
		Store:          store.Implementation(viper.GetString("store")),
		DataDir:        viper.GetString("data-dir"),
		RedisAddr:      viper.GetString("redis-addr"),
		RedisPassword:  viper.GetString("redis-password"),
		RedisDB:        viper.GetInt("redis-db"),
		RedisNamespace: viper.GetString("redis-namespace"),
		QuotaBytes:     viper.GetInt64("quota"),
		IdentityKey:    viper.GetString("identity-key"),
		LockTTL:        viper.GetDuration("lock-ttl"),
		LockRetries:    viper.GetInt("lock-retries"),
		LockRetryDelay: viper.GetDuration("lock-retry-delay"),
		Codec:          viper.GetString("codec"),
		BlobEncoding:   viper.GetString("blob-encoding"),
		LogLevel:       viper.GetString("log-level"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// opened is the vault of the running command, closed by CloseVault or FinalizeVault
var opened *vault.Vault

// OpenVault binds the flags of cmd, initializes the loggers and opens the configured vault
func OpenVault(cmd *cobra.Command) (*vault.Vault, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}

	config := GetClientConfig()
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return nil, err
	}
	plog.Debugf("client configuration:%s", config.String())

	v, err := vault.Open(cmd.Context(), config)
	if err != nil {
		return nil, err
	}
	opened = v
	return v, nil
}

// CloseVault closes the vault opened by OpenVault. It does nothing if no vault is open.
func CloseVault() error {
	v := opened
	opened = nil
	if v == nil {
		return nil
	}
	return v.Close()
}

// FinalizeVault closes a vault that is still open when the command ends, which is the
// case when the command failed. Register it with cobra.OnFinalize.
func FinalizeVault() {
	if err := CloseVault(); err != nil {
		plog.Errorf("failed to close vault: %v", err)
	}
}

// Print writes v to w in the given format (json or yaml)
func Print(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("invalid output format %s (expected json or yaml)", format)
	}
}
