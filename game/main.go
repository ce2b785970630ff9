package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	gameapi "github.com/Ftotnem/RPG-SERVICES/game/api"
	"github.com/Ftotnem/RPG-SERVICES/game/combat"
	"github.com/Ftotnem/RPG-SERVICES/game/cooldown"
	"github.com/Ftotnem/RPG-SERVICES/game/dungeon"
	"github.com/Ftotnem/RPG-SERVICES/game/party"
	"github.com/Ftotnem/RPG-SERVICES/game/policy"
	"github.com/Ftotnem/RPG-SERVICES/game/presence"
	"github.com/Ftotnem/RPG-SERVICES/game/progression"
	"github.com/Ftotnem/RPG-SERVICES/game/service"
	"github.com/Ftotnem/RPG-SERVICES/game/session"
	"github.com/Ftotnem/RPG-SERVICES/game/skill"
	"github.com/Ftotnem/RPG-SERVICES/game/store"
	"github.com/Ftotnem/RPG-SERVICES/game/syncer"
	"github.com/Ftotnem/RPG-SERVICES/game/updater"
	"github.com/Ftotnem/RPG-SERVICES/shared/api"
	"github.com/Ftotnem/RPG-SERVICES/shared/cluster"
	"github.com/Ftotnem/RPG-SERVICES/shared/config"
	"github.com/Ftotnem/RPG-SERVICES/shared/mongodb"
	"github.com/Ftotnem/RPG-SERVICES/shared/postgres"
	redisu "github.com/Ftotnem/RPG-SERVICES/shared/redis"
	"github.com/Ftotnem/RPG-SERVICES/shared/registry"
	instanceclient "github.com/Ftotnem/RPG-SERVICES/shared/service"
	"github.com/Ftotnem/RPG-SERVICES/shared/sched"
)

func main() {
	// --- 1. Load Configuration ---
	cfg, err := config.LoadGameServiceConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Configuration loaded for Game Service. Listening on: %s (storage: %s)", cfg.ListenAddr, cfg.StorageBackend)

	tables, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to load policy tables: %v", err)
	}

	// --- 2. Connect to Redis Cluster ---
	redisClient, err := redisu.NewRedisClusterClient(cfg.RedisAddrs, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis Cluster: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("ERROR: closing Redis client: %v", err)
		}
		log.Println("Redis Client closed.")
	}()
	log.Println("Connected to Redis Cluster.")

	// --- 3. Open the progression store ---
	progressionStore, closeStore := openStore(cfg)
	defer closeStore()
	onlineStore := store.NewOnlineStatusStore(redisClient, cfg.RedisOnlineTTL)

	// --- 4. Start the scheduler ---
	loop := sched.NewLoop(cfg.Workers, 4096)
	loop.Start()

	// --- 5. Initialize gameplay components ---
	cache := session.NewCache(loop, progressionStore, session.Options{
		IOTimeout: cfg.SaveTimeout,
		RegenRate: tables.ManaRegen.RatePerTick,
	})
	dir := presence.NewRegistry()
	messenger := presence.NewRedisMessenger(redisClient, loop).WithChannelPrefix(cfg.MessageChannelPrefix)
	tracker := combat.NewTracker()
	world := combat.NewWorld(cfg.LedgerIdleTTL, nil)
	cooldowns := cooldown.NewRegistry()
	groups := party.NewCoordinator(party.Config{MaxSize: cfg.PartyMaxSize, InviteTTL: cfg.PartyInviteTTL}, cache, tracker, dir)

	// --- 6. Service registry and dungeon host selection ---
	registrar := registry.NewServiceRegistrar(redisClient, registry.ServiceTypeGame, &cfg.CommonConfig, map[string]string{
		"storage": cfg.StorageBackend,
	})
	registrar.Start()
	log.Printf("Service registrar started for '%s' with Address: %s", registry.ServiceTypeGame, cfg.ListenAddr)

	registryClient := registry.NewRegistryClient(redisClient, cfg.HeartbeatTTL)
	hostRing := cluster.NewHostRing(registryClient, cfg.DungeonHostServiceType, cfg.HeartbeatInterval)
	go hostRing.Start()
	instances := instanceclient.NewInstanceClient(hostRing)

	gate := dungeon.NewGate(loop, tables, groups, cache, dir, cooldowns, instances, dungeon.Options{
		Cooldown:       cfg.DungeonCooldown,
		RequestTimeout: cfg.SaveTimeout,
	})
	gameService := service.NewGameService(service.Deps{
		Sched:      loop,
		Cache:      cache,
		Tracker:    tracker,
		World:      world,
		Groups:     groups,
		Cooldowns:  cooldowns,
		Classes:    progression.NewClassBook(tables),
		Skills:     skill.NewBook(tables, cooldowns),
		Gate:       gate,
		Presence:   dir,
		Messenger:  messenger,
		Online:     onlineStore,
		Tables:     tables,
		PolicyFile: cfg.PolicyFile,
		IOTimeout:  cfg.SaveTimeout,
	})
	log.Println("Game Service business logic initialized.")

	// --- 7. Background loops ---
	var (
		gameUpdater *updater.GameUpdater
		saveSyncer  *syncer.ProgressionSyncer
	)
	if err := sched.Await(context.Background(), loop, func() {
		gameUpdater = updater.NewGameUpdater(loop, cache, tracker, world, groups, cooldowns, dir, onlineStore, updater.Intervals{
			Regen:       cfg.RegenInterval,
			LedgerSweep: cfg.LedgerSweepInterval,
			InviteSweep: cfg.InviteSweepInterval,
			Heartbeat:   cfg.HeartbeatInterval,
		})
		gameUpdater.Start()
		saveSyncer = syncer.NewProgressionSyncer(loop, cache, dir, cfg.PersistenceInterval)
		saveSyncer.Start()
	}); err != nil {
		log.Fatalf("Failed to start background loops: %v", err)
	}

	// --- 8. Setup HTTP Server and Register Routes ---
	baseServer := api.NewBaseServer(cfg.ListenAddr, log.Default())
	gameapi.NewGameAPIHandlers(gameService, loop, cfg.SaveTimeout).RegisterRoutes(baseServer.Router)
	log.Println("HTTP routes registered.")

	go func() {
		if err := baseServer.Start(); err != nil {
			log.Fatalf("HTTP server failed to start: %v", err)
		}
	}()

	// --- 9. Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down Game Service...")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := baseServer.Shutdown(httpCtx); err != nil {
		log.Printf("ERROR: HTTP server graceful shutdown failed: %v", err)
	}
	log.Println("Game Service HTTP server gracefully stopped.")

	_ = sched.Await(httpCtx, loop, func() {
		gameUpdater.Stop()
		saveSyncer.Stop()
	})
	hostRing.Stop()
	registrar.Stop()
	loop.Stop()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer flushCancel()
	if err := cache.ShutdownSaveAll(flushCtx); err != nil {
		log.Printf("ERROR: some sessions could not be saved on shutdown: %v", err)
	}
	log.Println("Game Service gracefully shut down.")
}

// openStore builds the configured progression backend and returns a func
// that releases it.
func openStore(cfg *config.GameServiceConfig) (store.ProgressionStore, func()) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pg := cfg.Postgres
		db, err := postgres.Open(postgres.Options{
			Host:            pg.Host,
			Port:            pg.Port,
			User:            pg.User,
			Password:        pg.Password,
			DBName:          pg.DBName,
			SSLMode:         pg.SSLMode,
			MaxOpenConns:    pg.MaxOpenConns,
			MaxIdleConns:    pg.MaxIdleConns,
			ConnMaxLifetime: pg.ConnMaxLifetime,
			ConnMaxIdleTime: pg.ConnMaxIdleTime,
		})
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		pgStore := store.NewPostgresStore(db)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := pgStore.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize PostgreSQL schema: %v", err)
		}
		log.Printf("Using PostgreSQL progression store at %s:%d/%s.", pg.Host, pg.Port, pg.DBName)
		return pgStore, func() { closeDB(db) }

	case config.StorageMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		mongoClient, err := mongodb.NewClient(ctx, mongodb.Options{
			ConnStr:  cfg.MongoDBConnStr,
			Database: cfg.MongoDBDatabase,
			AppName:  registry.ServiceTypeGame,
		})
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		log.Printf("Using MongoDB progression store %s.%s.", cfg.MongoDBDatabase, cfg.MongoDBProgressionCollection)
		return store.NewMongoStore(mongoClient.Collection(cfg.MongoDBProgressionCollection)), func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(ctx); err != nil {
				log.Printf("ERROR: disconnecting MongoDB: %v", err)
			}
		}

	default:
		fileStore, err := store.NewFileStore(cfg.StorageFileDir)
		if err != nil {
			log.Fatalf("Failed to open file store: %v", err)
		}
		log.Printf("Using file progression store in %s.", cfg.StorageFileDir)
		return fileStore, func() {}
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Printf("ERROR: closing PostgreSQL: %v", err)
		return
	}
	log.Println("PostgreSQL connection closed.")
}
