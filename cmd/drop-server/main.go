package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Forge-Labs/mintgate-go/internal/allowlistfile"
	"github.com/Forge-Labs/mintgate-go/pkg/allowlist"
	"github.com/Forge-Labs/mintgate-go/pkg/auth"
	"github.com/Forge-Labs/mintgate-go/pkg/config"
	"github.com/Forge-Labs/mintgate-go/pkg/ledger"
	"github.com/Forge-Labs/mintgate-go/pkg/logger"
	"github.com/Forge-Labs/mintgate-go/pkg/mint"
	"github.com/Forge-Labs/mintgate-go/pkg/payments"
	"github.com/Forge-Labs/mintgate-go/pkg/persistence"
	badgerstore "github.com/Forge-Labs/mintgate-go/pkg/persistence/badger"
	memorystore "github.com/Forge-Labs/mintgate-go/pkg/persistence/memory"
	redisstore "github.com/Forge-Labs/mintgate-go/pkg/persistence/redis"
	"github.com/Forge-Labs/mintgate-go/pkg/server"
)

func main() {
	app := &cli.App{
		Name:  "drop-server",
		Usage: "Gated mint server for a fixed-supply token drop",
		Description: `A mint gateway that issues tokens from a fixed-supply collection in two
sale phases: an allow-listed phase verified via keccak256 merkle inclusion
proofs, and an open public phase. Supply ceilings, per-wallet quotas,
pricing and phase gating are enforced as atomic state transitions.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "owner-address",
				Aliases:  []string{"owner"},
				Usage:    "Ethereum address holding the privileged role",
				EnvVars:  []string{config.EnvDropOwnerAddress},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8000,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvDropPort},
			},
			&cli.Uint64Flag{
				Name:    "max-supply",
				Value:   10000,
				Usage:   "Total number of tokens in the collection",
				EnvVars: []string{config.EnvDropMaxSupply},
			},
			&cli.Uint64Flag{
				Name:    "max-public-per-wallet",
				Value:   10,
				Usage:   "Public-phase mint limit per wallet",
				EnvVars: []string{config.EnvDropMaxPublic},
			},
			&cli.Uint64Flag{
				Name:    "max-whitelist-per-wallet",
				Value:   3,
				Usage:   "Whitelist-phase mint limit per wallet",
				EnvVars: []string{config.EnvDropMaxWhitelist},
			},
			&cli.StringFlag{
				Name:    "public-price",
				Value:   "80000000000000000", // 0.08 ether
				Usage:   "Public-phase price per token, decimal wei",
				EnvVars: []string{config.EnvDropPublicPrice},
			},
			&cli.StringFlag{
				Name:    "whitelist-price",
				Value:   "60000000000000000", // 0.06 ether
				Usage:   "Whitelist-phase price per token, decimal wei",
				EnvVars: []string{config.EnvDropWhitelistPrice},
			},
			&cli.Uint64Flag{
				Name:    "team-mint-quantity",
				Value:   50,
				Usage:   "Size of the one-shot team allocation",
				EnvVars: []string{config.EnvDropTeamMintQuantity},
			},
			&cli.StringFlag{
				Name:    "allowlist-file",
				Usage:   "File with one hex address per line; builds and installs the commitment root on startup",
				EnvVars: []string{config.EnvDropAllowlistFile},
			},
			&cli.StringFlag{
				Name:    "base-uri",
				Usage:   "Post-reveal metadata base URI",
				EnvVars: []string{config.EnvDropBaseURI},
			},
			&cli.StringFlag{
				Name:    "placeholder-uri",
				Usage:   "Pre-reveal placeholder metadata URI",
				EnvVars: []string{config.EnvDropPlaceholderURI},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Value:   "memory",
				Usage:   "Sale state store backend: memory, badger, redis",
				EnvVars: []string{config.EnvDropPersistenceType},
			},
			&cli.StringFlag{
				Name:    "badger-path",
				Value:   "./data/drop",
				Usage:   "Badger data directory (persistence=badger)",
				EnvVars: []string{config.EnvDropBadgerPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address host:port (persistence=redis)",
				EnvVars: []string{config.EnvDropRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password (persistence=redis)",
				EnvVars: []string{config.EnvDropRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Value:   0,
				Usage:   "Redis database number (persistence=redis)",
				EnvVars: []string{config.EnvDropRedisDB},
			},
			&cli.Float64Flag{
				Name:  "mint-rate",
				Value: 50,
				Usage: "Mint requests per second before shedding (0 disables)",
			},
			&cli.IntFlag{
				Name:  "mint-burst",
				Value: 100,
				Usage: "Mint request burst size",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvDropVerbose},
			},
		},
		Action: runDropServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runDropServer(c *cli.Context) error {
	cfg := &config.DropServerConfig{
		OwnerAddress:          c.String("owner-address"),
		Port:                  c.Int("port"),
		MaxSupply:             c.Uint64("max-supply"),
		MaxPublicPerWallet:    c.Uint64("max-public-per-wallet"),
		MaxWhitelistPerWallet: c.Uint64("max-whitelist-per-wallet"),
		PublicPriceWei:        c.String("public-price"),
		WhitelistPriceWei:     c.String("whitelist-price"),
		TeamMintQuantity:      c.Uint64("team-mint-quantity"),
		AllowlistFile:         c.String("allowlist-file"),
		BaseURI:               c.String("base-uri"),
		PlaceholderURI:        c.String("placeholder-uri"),
		PersistenceType:       config.PersistenceType(c.String("persistence")),
		BadgerPath:            c.String("badger-path"),
		RedisAddress:          c.String("redis-address"),
		RedisPassword:         c.String("redis-password"),
		RedisDB:               c.Int("redis-db"),
		Verbose:               c.Bool("verbose"),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	appLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = appLogger.Sync() }()

	store, err := buildStore(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	defer func() { _ = store.Close() }()

	owner, err := auth.NewSingleOwner(cfg.Owner())
	if err != nil {
		return err
	}

	saleConfig, err := cfg.SaleConfig()
	if err != nil {
		return err
	}

	tokenLedger, err := buildLedger(store, appLogger)
	if err != nil {
		return fmt.Errorf("failed to rebuild token ledger: %w", err)
	}

	machine, err := mint.NewMachine(saleConfig, mint.Deps{
		Ledger:     tokenLedger,
		Authorizer: owner,
		Channel:    payments.NewMemoryChannel(),
		Store:      store,
		Logger:     appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to create mint state machine: %w", err)
	}

	if cfg.BaseURI != "" {
		if err := machine.SetBaseURI(cfg.Owner(), cfg.BaseURI); err != nil {
			return err
		}
	}
	if cfg.PlaceholderURI != "" {
		if err := machine.SetPlaceholderURI(cfg.Owner(), cfg.PlaceholderURI); err != nil {
			return err
		}
	}

	if cfg.AllowlistFile != "" {
		addresses, err := allowlistfile.Read(cfg.AllowlistFile)
		if err != nil {
			return fmt.Errorf("failed to read allowlist file: %w", err)
		}
		tree, err := allowlist.BuildTree(addresses)
		if err != nil {
			return fmt.Errorf("failed to build allowlist tree: %w", err)
		}
		if err := machine.SetCommitmentRoot(cfg.Owner(), tree.Root); err != nil {
			return err
		}
		appLogger.Sugar().Infow("Installed commitment root from allowlist file",
			"file", cfg.AllowlistFile, "members", len(tree.Leaves))
	}

	srv := server.NewServer(machine, server.Config{
		Port:              cfg.Port,
		MintRatePerSecond: c.Float64("mint-rate"),
		MintBurst:         c.Int("mint-burst"),
	}, appLogger)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	appLogger.Sugar().Infow("Drop server running",
		"port", cfg.Port, "owner", cfg.OwnerAddress,
		"max_supply", cfg.MaxSupply, "persistence", cfg.PersistenceType.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	appLogger.Sugar().Infow("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

// buildLedger rebuilds the in-memory token ledger from the last sale-state
// snapshot, so issued ids and their owners survive a restart. A fresh
// ledger is returned when no snapshot exists yet.
func buildLedger(store persistence.SaleStateStore, appLogger *zap.Logger) (*ledger.MemoryLedger, error) {
	state, err := store.LoadSaleState()
	if err != nil {
		return nil, err
	}
	if state == nil || len(state.TokenOwners) == 0 {
		return ledger.NewMemoryLedger(), nil
	}

	owners := make(map[uint64]common.Address, len(state.TokenOwners))
	for tokenID, hexAddr := range state.TokenOwners {
		owners[tokenID] = common.HexToAddress(hexAddr)
	}

	l := ledger.NewMemoryLedgerFromOwners(owners)
	appLogger.Sugar().Infow("Rebuilt token ledger from snapshot", "tokens", l.TotalMinted())
	return l, nil
}

func buildStore(cfg *config.DropServerConfig, appLogger *zap.Logger) (persistence.SaleStateStore, error) {
	switch cfg.PersistenceType {
	case config.PersistenceBadger:
		return badgerstore.NewBadgerStore(cfg.BadgerPath, appLogger)
	case config.PersistenceRedis:
		return redisstore.NewRedisStore(&redisstore.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, appLogger)
	default:
		return memorystore.NewMemoryStore(), nil
	}
}
