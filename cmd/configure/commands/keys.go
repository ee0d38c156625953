package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benvon/usage-gov/internal/config"
	"github.com/benvon/usage-gov/internal/database"
	"github.com/benvon/usage-gov/internal/vault"
)

// NewKeysCmd creates the keys command with store, rotate, list, and
// check subcommands.
func NewKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys",
		Long:  "Store, rotate, list, and health-check encrypted provider credentials.",
	}
	cmd.AddCommand(newKeysStoreCmd())
	cmd.AddCommand(newKeysRotateCmd())
	cmd.AddCommand(newKeysListCmd())
	cmd.AddCommand(newKeysCheckCmd())
	return cmd
}

// openVault loads config, connects to the database, and builds the
// vault. The returned cleanup closes the connection.
func openVault() (*vault.Vault, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	v, err := vault.New(database.NewAPIKeyRepository(db), cfg.EncryptionSecret, nil)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initialize vault: %w", err)
	}
	return v, cleanup, nil
}

func newKeysStoreCmd() *cobra.Command {
	var provider, key string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Store a new provider key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" || key == "" {
				return fmt.Errorf("--provider and --key are required")
			}
			v, cleanup, err := openVault()
			if err != nil {
				return err
			}
			defer cleanup()

			keyID, err := v.StoreKey(context.Background(), provider, key)
			if err != nil {
				return fmt.Errorf("store key: %w", err)
			}
			fmt.Printf("Stored key %s for provider %s (%s)\n", keyID, provider, vault.MaskKey(key))
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider name (e.g. openai)")
	cmd.Flags().StringVar(&key, "key", "", "Plaintext API key")
	return cmd
}

func newKeysRotateCmd() *cobra.Command {
	var provider, key string
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotate a provider key",
		Long:  "Deactivate all active keys for the provider and install the new one atomically.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" || key == "" {
				return fmt.Errorf("--provider and --key are required")
			}
			v, cleanup, err := openVault()
			if err != nil {
				return err
			}
			defer cleanup()

			keyID, err := v.RotateKey(context.Background(), provider, key)
			if err != nil {
				return fmt.Errorf("rotate key: %w", err)
			}
			fmt.Printf("Rotated provider %s to key %s (%s)\n", provider, keyID, vault.MaskKey(key))
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider name (e.g. openai)")
	cmd.Flags().StringVar(&key, "key", "", "New plaintext API key")
	return cmd
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored keys (masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, cleanup, err := openVault()
			if err != nil {
				return err
			}
			defer cleanup()

			views, err := v.ListKeys(context.Background())
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}
			if len(views) == 0 {
				fmt.Println("No keys stored.")
				return nil
			}
			for _, view := range views {
				lastUsed := "never"
				if view.LastUsedAt != nil {
					lastUsed = view.LastUsedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-36s  %-12s  %-12s  %-16s  last used: %s\n",
					view.ID, view.Provider, view.Status, view.MaskedKey, lastUsed)
			}
			return nil
		},
	}
}

func newKeysCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Health-check stored credentials per provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, cleanup, err := openVault()
			if err != nil {
				return err
			}
			defer cleanup()

			for provider, ok := range v.HealthCheck(context.Background()) {
				status := "FAIL"
				if ok {
					status = "OK"
				}
				fmt.Printf("%-12s %s\n", provider, status)
			}
			return nil
		},
	}
}
