// shared/config/config.go
package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrInvalidConfig is returned when parsed values fail validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Storage backends for player progression.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

// CommonConfig holds configuration fields that are shared across multiple services.
type CommonConfig struct {
	RedisAddrs              []string      `env:"REDIS_ADDRS" envSeparator:"," envDefault:"redis-cluster-headless.rpg-cluster.svc.cluster.local:6379"`
	RedisPassword           string        `env:"REDIS_PASSWORD"`
	HeartbeatInterval       time.Duration `env:"SERVICE_HEARTBEAT_INTERVAL" envDefault:"5s"`         // how often to heartbeat into the registry
	HeartbeatTTL            time.Duration `env:"SERVICE_HEARTBEAT_TTL" envDefault:"15s"`             // how long an instance counts as alive without a heartbeat
	RegistryCleanupInterval time.Duration `env:"SERVICE_REGISTRY_CLEANUP_INTERVAL" envDefault:"30s"` // how often stale registry entries are purged
	ServiceIP               string        `env:"POD_IP"`                                             // advertised IP (Kubernetes Pod IP)
	ServicePort             int                                                                      // derived from the listen address
}

// PostgresConfig holds the PostgreSQL connection settings.
type PostgresConfig struct {
	Host            string        `env:"HOST" envDefault:"postgres"`
	Port            int           `env:"PORT" envDefault:"5432"`
	User            string        `env:"USER" envDefault:"rpg"`
	Password        string        `env:"PASSWORD"`
	DBName          string        `env:"DB" envDefault:"rpg"`
	SSLMode         string        `env:"SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME" envDefault:"5m"`
}

// GameServiceConfig holds configuration specific to the game-service.
type GameServiceConfig struct {
	CommonConfig

	ListenAddr     string        `env:"GAME_SERVICE_LISTEN_ADDR" envDefault:":8082"`
	RedisOnlineTTL time.Duration `env:"REDIS_ONLINE_TTL" envDefault:"15s"` // TTL for online:{uuid}: keys
	Workers        int           `env:"GAME_SERVICE_WORKERS" envDefault:"4"`

	RegenInterval       time.Duration `env:"REGEN_INTERVAL" envDefault:"1s"`
	LedgerSweepInterval time.Duration `env:"LEDGER_SWEEP_INTERVAL" envDefault:"300s"`
	LedgerIdleTTL       time.Duration `env:"LEDGER_IDLE_TTL" envDefault:"30m"` // target unhit this long counts as despawned
	InviteSweepInterval time.Duration `env:"INVITE_SWEEP_INTERVAL" envDefault:"60s"`
	PersistenceInterval time.Duration `env:"GAME_SERVICE_PERSISTENCE_INTERVAL" envDefault:"5m"`
	SaveTimeout         time.Duration `env:"GAME_SAVE_TIMEOUT" envDefault:"10s"`     // per load/save call
	ShutdownTimeout     time.Duration `env:"GAME_SHUTDOWN_TIMEOUT" envDefault:"60s"` // final flush on shutdown

	PartyMaxSize    int           `env:"PARTY_MAX_SIZE" envDefault:"4"`
	PartyInviteTTL  time.Duration `env:"PARTY_INVITE_TTL" envDefault:"60s"`
	DungeonCooldown time.Duration `env:"DUNGEON_COOLDOWN" envDefault:"30m"`

	PolicyFile string `env:"POLICY_FILE"`

	StorageBackend string         `env:"STORAGE_BACKEND" envDefault:"file"`
	StorageFileDir string         `env:"STORAGE_FILE_DIR" envDefault:"data/players"`
	Postgres       PostgresConfig `envPrefix:"POSTGRES_"`

	MongoDBConnStr               string `env:"MONGODB_CONN_STR" envDefault:"mongodb://mongodb-service:27017"`
	MongoDBDatabase              string `env:"MONGODB_DATABASE" envDefault:"rpg"`
	MongoDBProgressionCollection string `env:"MONGODB_PROGRESSION_COLLECTION" envDefault:"progression"`

	DungeonHostServiceType string `env:"DUNGEON_HOST_SERVICE_TYPE" envDefault:"dungeon-host"`
	MessageChannelPrefix   string `env:"MESSAGE_CHANNEL_PREFIX" envDefault:"messages"`
}

// LoadCommonConfig loads common configuration from environment variables.
func LoadCommonConfig() (CommonConfig, error) {
	var cfg CommonConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	applyCommonDefaults(&cfg)
	return cfg, nil
}

func applyCommonDefaults(cfg *CommonConfig) {
	for i, addr := range cfg.RedisAddrs {
		cfg.RedisAddrs[i] = strings.TrimSpace(addr)
	}
	if cfg.ServiceIP == "" {
		// Local development outside Kubernetes.
		cfg.ServiceIP = "0.0.0.0"
		log.Printf("WARNING: POD_IP not set, defaulting ServiceIP to %s", cfg.ServiceIP)
	}
}

// extractPort extracts the numeric port from a listen address (":8082" -> 8082, "0.0.0.0:8082" -> 8082).
func extractPort(listenAddr string) (int, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		if !strings.HasPrefix(listenAddr, ":") {
			return 0, fmt.Errorf("invalid ListenAddr format for port extraction: %w", err)
		}
		portStr = strings.TrimPrefix(listenAddr, ":")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}
	return port, nil
}

// LoadGameServiceConfig loads configuration for the game-service.
func LoadGameServiceConfig() (*GameServiceConfig, error) {
	cfg := &GameServiceConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to load game-service config: %w", err)
	}
	applyCommonDefaults(&cfg.CommonConfig)

	port, err := extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from GAME_SERVICE_LISTEN_ADDR '%s': %w", cfg.ListenAddr, err)
	}
	cfg.ServicePort = port

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *GameServiceConfig) Validate() error {
	switch c.StorageBackend {
	case StorageFile:
		if c.StorageFileDir == "" {
			return fmt.Errorf("%w: STORAGE_FILE_DIR is required for the file backend", ErrInvalidConfig)
		}
	case StoragePostgres, StorageMongo:
	default:
		return fmt.Errorf("%w: STORAGE_BACKEND must be one of file, postgres, mongo (got %q)", ErrInvalidConfig, c.StorageBackend)
	}
	if len(c.RedisAddrs) == 0 {
		return fmt.Errorf("%w: REDIS_ADDRS is empty", ErrInvalidConfig)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: GAME_SERVICE_WORKERS must be positive (got %d)", ErrInvalidConfig, c.Workers)
	}
	if c.PartyMaxSize < 2 {
		return fmt.Errorf("%w: PARTY_MAX_SIZE must be at least 2 (got %d)", ErrInvalidConfig, c.PartyMaxSize)
	}
	intervals := map[string]time.Duration{
		"REGEN_INTERVAL":                    c.RegenInterval,
		"LEDGER_SWEEP_INTERVAL":             c.LedgerSweepInterval,
		"LEDGER_IDLE_TTL":                   c.LedgerIdleTTL,
		"INVITE_SWEEP_INTERVAL":             c.InviteSweepInterval,
		"GAME_SERVICE_PERSISTENCE_INTERVAL": c.PersistenceInterval,
		"GAME_SAVE_TIMEOUT":                 c.SaveTimeout,
		"GAME_SHUTDOWN_TIMEOUT":             c.ShutdownTimeout,
		"PARTY_INVITE_TTL":                  c.PartyInviteTTL,
		"DUNGEON_COOLDOWN":                  c.DungeonCooldown,
		"REDIS_ONLINE_TTL":                  c.RedisOnlineTTL,
		"SERVICE_HEARTBEAT_INTERVAL":        c.HeartbeatInterval,
	}
	for key, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive (got %s)", ErrInvalidConfig, key, d)
		}
	}
	return nil
}
