package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Forge-Labs/mintgate-go/pkg/persistence"
)

// Keys for namespacing in Redis
const (
	keySaleState         = "mintgate:salestate:main"
	keySchemaVersion     = "mintgate:metadata:schema_version"
	currentSchemaVersion = "v1"
)

const opTimeout = 5 * time.Second

// RedisStore is a SaleStateStore backed by Redis, suitable for cloud-native
// deployments where local disk is ephemeral.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// Ensure RedisStore implements SaleStateStore
var _ persistence.SaleStateStore = (*RedisStore)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant
	// setups). If set, it is prepended to the default "mintgate:" keys.
	KeyPrefix string
}

// NewRedisStore creates a new Redis-backed sale state store and verifies
// the connection with a ping.
func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis sale state store initialized", "address", cfg.Address, "db", cfg.DB)

	return rs, nil
}

// stateKey returns the fully prefixed key holding the sale state.
func (r *RedisStore) stateKey() string {
	return r.keyPrefix + keySaleState
}

// schemaKey returns the fully prefixed key holding the schema version.
func (r *RedisStore) schemaKey() string {
	return r.keyPrefix + keySchemaVersion
}

// initSchema initializes or validates the schema version
func (r *RedisStore) initSchema(ctx context.Context) error {
	key := r.schemaKey()

	existing, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, key, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existing != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
	}
	return nil
}

func (r *RedisStore) SaveSaleState(state *persistence.SaleState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil SaleState")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return fmt.Errorf("sale state store is closed")
	}

	data, err := persistence.MarshalSaleState(state)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.stateKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save sale state: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadSaleState() (*persistence.SaleState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, fmt.Errorf("sale state store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.stateKey()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sale state: %w", err)
	}

	return persistence.UnmarshalSaleState(data)
}

func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}
