package config

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Forge-Labs/mintgate-go/pkg/mint"
)

// Environment variable names for drop server configuration
const (
	EnvDropOwnerAddress     = "DROP_OWNER_ADDRESS"
	EnvDropPort             = "DROP_PORT"
	EnvDropMaxSupply        = "DROP_MAX_SUPPLY"
	EnvDropMaxPublic        = "DROP_MAX_PUBLIC_PER_WALLET"
	EnvDropMaxWhitelist     = "DROP_MAX_WHITELIST_PER_WALLET"
	EnvDropPublicPrice      = "DROP_PUBLIC_PRICE_WEI"
	EnvDropWhitelistPrice   = "DROP_WHITELIST_PRICE_WEI"
	EnvDropTeamMintQuantity = "DROP_TEAM_MINT_QUANTITY"
	EnvDropAllowlistFile    = "DROP_ALLOWLIST_FILE"
	EnvDropBaseURI          = "DROP_BASE_URI"
	EnvDropPlaceholderURI   = "DROP_PLACEHOLDER_URI"
	EnvDropPersistenceType  = "DROP_PERSISTENCE_TYPE"
	EnvDropBadgerPath       = "DROP_BADGER_PATH"
	EnvDropRedisAddress     = "DROP_REDIS_ADDRESS"
	EnvDropRedisPassword    = "DROP_REDIS_PASSWORD"
	EnvDropRedisDB          = "DROP_REDIS_DB"
	EnvDropVerbose          = "DROP_VERBOSE"
)

// PersistenceType selects the sale state store backend.
type PersistenceType string

const (
	PersistenceMemory PersistenceType = "memory"
	PersistenceBadger PersistenceType = "badger"
	PersistenceRedis  PersistenceType = "redis"
)

func (p PersistenceType) String() string {
	return string(p)
}

// DropServerConfig represents the complete configuration for a drop server.
type DropServerConfig struct {
	// Privileged role
	OwnerAddress string `json:"owner_address"` // Ethereum address of the sale owner

	// HTTP
	Port int `json:"port"`

	// Sale constants
	MaxSupply             uint64 `json:"max_supply"`
	MaxPublicPerWallet    uint64 `json:"max_public_per_wallet"`
	MaxWhitelistPerWallet uint64 `json:"max_whitelist_per_wallet"`
	PublicPriceWei        string `json:"public_price_wei"`    // decimal wei string
	WhitelistPriceWei     string `json:"whitelist_price_wei"` // decimal wei string
	TeamMintQuantity      uint64 `json:"team_mint_quantity"`

	// Metadata
	BaseURI        string `json:"base_uri"`
	PlaceholderURI string `json:"placeholder_uri"`

	// Allowlist file (one hex address per line); optional, the root can
	// also be installed later through the admin API
	AllowlistFile string `json:"allowlist_file,omitempty"`

	// Persistence
	PersistenceType PersistenceType `json:"persistence_type"`
	BadgerPath      string          `json:"badger_path,omitempty"`
	RedisAddress    string          `json:"redis_address,omitempty"`
	RedisPassword   string          `json:"-"`
	RedisDB         int             `json:"redis_db,omitempty"`

	// Operational settings
	Verbose bool `json:"verbose"`
}

// Validate validates the drop server configuration.
func (c *DropServerConfig) Validate() error {
	if c.OwnerAddress == "" {
		return fmt.Errorf("owner address cannot be empty")
	}
	if !common.IsHexAddress(c.OwnerAddress) {
		return fmt.Errorf("invalid owner address format: %s", c.OwnerAddress)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1-65535, got %d", c.Port)
	}

	if _, err := c.SaleConfig(); err != nil {
		return err
	}

	switch c.PersistenceType {
	case PersistenceMemory:
	case PersistenceBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("badger persistence requires a data path")
		}
	case PersistenceRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("redis persistence requires an address")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("redis DB must be between 0-15, got %d", c.RedisDB)
		}
	default:
		return fmt.Errorf("unsupported persistence type: %q (supported: memory, badger, redis)", c.PersistenceType)
	}

	return nil
}

// SaleConfig converts the wire-level price strings into the machine's
// sale configuration.
func (c *DropServerConfig) SaleConfig() (mint.SaleConfig, error) {
	publicPrice, err := parseWei(c.PublicPriceWei)
	if err != nil {
		return mint.SaleConfig{}, fmt.Errorf("invalid public price: %w", err)
	}
	whitelistPrice, err := parseWei(c.WhitelistPriceWei)
	if err != nil {
		return mint.SaleConfig{}, fmt.Errorf("invalid whitelist price: %w", err)
	}

	cfg := mint.SaleConfig{
		MaxSupply:             c.MaxSupply,
		MaxPublicPerWallet:    c.MaxPublicPerWallet,
		MaxWhitelistPerWallet: c.MaxWhitelistPerWallet,
		PublicPrice:           publicPrice,
		WhitelistPrice:        whitelistPrice,
		TeamMintQuantity:      c.TeamMintQuantity,
	}
	if err := cfg.Validate(); err != nil {
		return mint.SaleConfig{}, err
	}
	return cfg, nil
}

// Owner returns the parsed owner address. Validate must have passed.
func (c *DropServerConfig) Owner() common.Address {
	return common.HexToAddress(c.OwnerAddress)
}

// parseWei parses a non-negative decimal wei amount.
func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal wei amount: %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("wei amount cannot be negative: %q", s)
	}
	return v, nil
}
