package database

import (
	"github.com/benvon/usage-gov/internal/alerts"
	"github.com/benvon/usage-gov/internal/vault"
)

// Ensure concrete repositories satisfy the interfaces the core
// components are constructed against.
var (
	_ vault.KeyRepository     = (*APIKeyRepository)(nil)
	_ alerts.ConfigRepository = (*AlertConfigRepository)(nil)
	_ alerts.Ledger           = (*UsageRepository)(nil)
)
