package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/benvon/usage-gov/internal/config"
	"github.com/benvon/usage-gov/internal/database"
	"github.com/benvon/usage-gov/internal/queue"
	"github.com/benvon/usage-gov/internal/ratelimit"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test backend connectivity",
		Long:  "Verify the database, counter store, and alert sink are reachable with the current configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				fmt.Printf("database:      FAIL (%v)\n", err)
			} else {
				fmt.Println("database:      OK")
				defer func() {
					if err := db.Close(); err != nil {
						fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
					}
				}()
			}

			if cfg.RedisURL == "" {
				fmt.Println("counter store: in-process fallback (degraded mode, single-instance scope)")
			} else {
				store, err := ratelimit.NewRedisCounterStore(cfg.RedisURL, cfg.RedisTimeout)
				if err != nil {
					fmt.Printf("counter store: FAIL (%v)\n", err)
				} else {
					fmt.Println("counter store: OK")
					if err := store.Close(); err != nil {
						fmt.Fprintf(os.Stderr, "Warning: failed to close Redis: %v\n", err)
					}
				}
			}

			if cfg.RabbitMQURL == "" {
				fmt.Println("alert sink:    log-only (RABBITMQ_URL not set)")
			} else {
				publisher, err := queue.NewAlertPublisher(cfg.RabbitMQURL)
				if err != nil {
					fmt.Printf("alert sink:    FAIL (%v)\n", err)
				} else if err := publisher.HealthCheck(ctx); err != nil {
					fmt.Printf("alert sink:    FAIL (%v)\n", err)
				} else {
					fmt.Println("alert sink:    OK")
					if err := publisher.Close(); err != nil {
						fmt.Fprintf(os.Stderr, "Warning: failed to close RabbitMQ: %v\n", err)
					}
				}
			}

			return nil
		},
	}
}
