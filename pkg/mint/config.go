package mint

import (
	"fmt"
	"math/big"
)

// SaleConfig holds the numeric constants of the sale. Fixed at construction
// and never mutated afterwards; only the flags and counters of the machine
// change at runtime.
type SaleConfig struct {
	// MaxSupply is the ceiling on TotalIssued across both sale phases.
	MaxSupply uint64

	// MaxPublicPerWallet caps public-phase mints per wallet.
	MaxPublicPerWallet uint64

	// MaxWhitelistPerWallet caps whitelist-phase mints per wallet.
	MaxWhitelistPerWallet uint64

	// PublicPrice is the per-token price (wei) during the public phase.
	PublicPrice *big.Int

	// WhitelistPrice is the per-token price (wei) during the whitelist phase.
	WhitelistPrice *big.Int

	// TeamMintQuantity is the fixed size of the one-shot team allocation.
	// The team mint is not checked against MaxSupply; the configured
	// supply must leave headroom for it.
	TeamMintQuantity uint64
}

// Validate checks the configuration for internally inconsistent values.
func (c *SaleConfig) Validate() error {
	if c.MaxSupply == 0 {
		return fmt.Errorf("max supply must be positive")
	}
	if c.MaxPublicPerWallet == 0 {
		return fmt.Errorf("max public mints per wallet must be positive")
	}
	if c.MaxWhitelistPerWallet == 0 {
		return fmt.Errorf("max whitelist mints per wallet must be positive")
	}
	if c.PublicPrice == nil || c.PublicPrice.Sign() < 0 {
		return fmt.Errorf("public price must be a non-negative wei amount")
	}
	if c.WhitelistPrice == nil || c.WhitelistPrice.Sign() < 0 {
		return fmt.Errorf("whitelist price must be a non-negative wei amount")
	}
	if c.TeamMintQuantity == 0 {
		return fmt.Errorf("team mint quantity must be positive")
	}
	return nil
}
