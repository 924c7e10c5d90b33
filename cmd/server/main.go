package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"bomb-arena/internal/api"
	"bomb-arena/internal/config"
	"bomb-arena/internal/game"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  BOMB ARENA - GO ENGINE")
	log.Println("🎮 ================================")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}
	arenaCfg := cfg.Arena

	seed := arenaCfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	engine, err := game.NewEngine(game.EngineConfig{
		Rules:        arenaCfg.Rules(cfg.Limits),
		TickInterval: arenaCfg.TickInterval,
		Limits:       cfg.Limits.Game(),
		Rand:         rand.New(rand.NewSource(seed)),
	})
	if err != nil {
		log.Fatalf("❌ Engine: %v", err)
	}
	log.Printf("🎮 Config: %dx%d arena, tick %v, fuse %v, seed %d",
		arenaCfg.Width, arenaCfg.Height, arenaCfg.TickInterval, arenaCfg.FuseDuration, seed)
	log.Printf("🛡️ Resource limits: %d actors, %d ws connections (%d per IP)",
		cfg.Limits.MaxActors, cfg.Server.MaxConnections, cfg.Server.MaxConnectionsPerIP)

	obs := cfg.Observability
	if obs.EventLogPath != "" {
		if err := engine.StartEventLog(obs.EventLogPath); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", obs.EventLogPath)
		}
	}

	if err := api.StartDebugServer(api.ObservabilityConfig{
		Enabled:       obs.Enabled,
		ListenAddr:    obs.ListenAddr,
		BasicAuthUser: obs.BasicAuthUser,
		BasicAuthPass: obs.BasicAuthPass,
	}); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	srv := cfg.Server
	server := api.NewServer(engine, api.ServerConfig{
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: srv.RequestsPerSecond,
			Burst:             srv.RequestBurst,
			CleanupInterval:   api.DefaultRateLimitConfig.CleanupInterval,
		},
		CORSOrigins:    srv.CORSOrigins,
		StaticDir:      srv.StaticDir,
		DisableLogging: !srv.AccessLog,
		Hub: api.HubConfig{
			MaxConnections:      srv.MaxConnections,
			MaxConnectionsPerIP: srv.MaxConnectionsPerIP,
			IntentsPerSecond:    srv.IntentsPerSecond,
			IntentBurst:         srv.IntentBurst,
			SendBuffer:          srv.SendBuffer,
			AllowedOrigins:      srv.CORSOrigins,
		},
	})

	engine.Start()
	log.Println("✅ Game Engine started")

	go func() {
		addr := ":" + strconv.Itoa(srv.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	engine.Stop()
	engine.StopEventLog()
	log.Println("👋 Goodbye!")
}
