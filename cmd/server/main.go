package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/org/fleetadmin/internal/api"
	"github.com/org/fleetadmin/internal/audit"
	"github.com/org/fleetadmin/internal/backup"
	"github.com/org/fleetadmin/internal/credential"
	"github.com/org/fleetadmin/internal/crypto"
	"github.com/org/fleetadmin/internal/records"
	"github.com/org/fleetadmin/internal/session"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type config struct {
	ListenAddr    string `yaml:"listen_addr"`
	TLSCertFile   string `yaml:"tls_cert"`
	TLSKeyFile    string `yaml:"tls_key"`
	DBUrl         string `yaml:"db_url"`
	MigrationsDir string `yaml:"migrations_dir"`
	LogLevel      string `yaml:"log_level"`
	RootKeyFile   string `yaml:"root_key_file"`

	SeedHandle    string `yaml:"seed_handle"`
	SeedPassword  string `yaml:"seed_password"`
	SeedFirstName string `yaml:"seed_first_name"`
	SeedLastName  string `yaml:"seed_last_name"`

	SessionTTL       time.Duration `yaml:"session_ttl"`
	FailureThreshold int           `yaml:"failure_threshold"`
	FailureWindow    time.Duration `yaml:"failure_window"`
}

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	cfgFile := "config.yaml"
	if v := os.Getenv("FLEETADMIN_CONFIG"); v != "" {
		cfgFile = v
	}

	cfg := config{
		ListenAddr:       ":8300",
		MigrationsDir:    "migrations",
		LogLevel:         "info",
		RootKeyFile:      "root.key",
		SeedHandle:       "super_admin",
		SeedPassword:     "Admin_123?",
		SeedFirstName:    "Super",
		SeedLastName:     "Admin",
		SessionTTL:       8 * time.Hour,
		FailureThreshold: audit.DefaultThreshold,
		FailureWindow:    audit.DefaultWindow,
	}

	if data, err := os.ReadFile(cfgFile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to parse config")
		}
	} else {
		log.Warn().Str("file", cfgFile).Msg("config file not found, using defaults")
	}

	// Env overrides
	if v := os.Getenv("FLEETADMIN_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBUrl = v
	}
	if v := os.Getenv("FLEETADMIN_SEED_PASSWORD"); v != "" {
		cfg.SeedPassword = v
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx := context.Background()

	// Load or generate the root encryption key. All encrypted columns
	// derive from this key; losing it means losing the data.
	rootKey, err := crypto.LoadRootKey(cfg.RootKeyFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatal().Err(err).Str("file", cfg.RootKeyFile).Msg("failed to load root key")
		}
		rootKey, err = crypto.GenerateRootKey()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate root key")
		}
		if err := crypto.WriteRootKey(cfg.RootKeyFile, rootKey); err != nil {
			log.Fatal().Err(err).Msg("failed to write root key")
		}
		log.Warn().Str("file", cfg.RootKeyFile).Msg("generated new root key")
	}

	codec, err := crypto.NewCodec(rootKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize field codec")
	}

	// Pick the store: Postgres when configured, otherwise an in-memory
	// store for local development.
	var store storage.Store
	if cfg.DBUrl != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DBUrl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := storage.RunMigrations(cfg.DBUrl, cfg.MigrationsDir); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("migrations applied")
		store = pg
	} else {
		log.Warn().Msg("no db_url configured, using in-memory store (data is not persisted)")
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	creds := credential.NewService(store, codec)
	recorder := audit.NewRecorder(store, codec, cfg.FailureThreshold, cfg.FailureWindow)
	backups := backup.NewManager(store)
	codes := backup.NewCodeIssuer(store, backups, recorder)
	travellers := records.NewTravellerService(store, codec)
	scooters := records.NewScooterService(store)

	sessCfg := session.Config{
		SeedHandle:       cfg.SeedHandle,
		SeedPassword:     cfg.SeedPassword,
		SeedFirstName:    cfg.SeedFirstName,
		SeedLastName:     cfg.SeedLastName,
		SessionTTL:       cfg.SessionTTL,
		FailureThreshold: cfg.FailureThreshold,
		FailureWindow:    cfg.FailureWindow,
	}
	sessions := session.NewManager(store, creds, recorder, backups, codes, travellers, scooters, sessCfg)
	if err := sessions.Bootstrap(ctx, sessCfg); err != nil {
		log.Fatal().Err(err).Msg("failed to seed super admin")
	}

	srv := api.NewServer(sessions, api.Config{
		ListenAddr:  cfg.ListenAddr,
		TLSCertFile: cfg.TLSCertFile,
		TLSKeyFile:  cfg.TLSKeyFile,
	})

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("server started")
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
