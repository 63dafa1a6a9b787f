package lock

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/memento/cmd/util"
	"github.com/ValentinKolb/memento/lib/vault"
	"github.com/spf13/cobra"
)

var (
	v *vault.Vault

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:                "lock",
		Short:              "Inspect and operate the advisory lock",
		PersistentPreRunE:  setupVault,
		PersistentPostRunE: func(*cobra.Command, []string) error { return util.CloseVault() },
	}

	// statusCmd represents the status command
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show who holds the lock",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire",
		Short: "Acquire the lock for this client",
		Long:  "Acquire the lock for this client. The lock is held until it is released, this client writes, or the TTL passes.",
		Args:  cobra.NoArgs,
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release",
		Short: "Release the lock if this client holds it",
		Args:  cobra.NoArgs,
		RunE:  runRelease,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to lock command
	LockCommands.AddCommand(statusCmd)
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)

	// Add common client flags to the lock command
	util.SetupClientFlags(LockCommands)
}

// setupVault opens the vault
func setupVault(cmd *cobra.Command, _ []string) (err error) {
	v, err = util.OpenVault(cmd)
	return err
}

// runStatus handles the status command
func runStatus(cmd *cobra.Command, _ []string) error {
	rec, found, err := v.LockStatus(cmd.Context())
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("held=false")
		return nil
	}

	now := v.Now()
	state := "active"
	if !rec.Expiry().After(now) {
		state = "expired"
	}
	fmt.Printf("held=true, owner=%s, self=%v, acquired=%s, expires=%s (%s)\n",
		rec.Owner,
		rec.Owner == v.Identity(),
		rec.AcquiredAt().Format(time.RFC3339),
		rec.Expiry().Format(time.RFC3339),
		state,
	)
	return nil
}

// runAcquire handles the acquire command
func runAcquire(cmd *cobra.Command, _ []string) error {
	if err := v.AcquireLock(cmd.Context()); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	fmt.Printf("acquired=true, owner=%s\n", v.Identity())
	return nil
}

// runRelease handles the release command
func runRelease(cmd *cobra.Command, _ []string) error {
	released, err := v.ReleaseLock(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	fmt.Printf("released=%v\n", released)
	return nil
}
