// =============================================================================
// BOMB ARENA - BOT SWARM
// =============================================================================
// This standalone process connects scripted players to a running server:
// - Each bot dials /ws, joins and mirrors the arena from init and diffs
// - Bots wander and drop bombs at random
// - Useful for load testing and for keeping an empty arena lively
//
// USAGE:
//   1. Start the game server first: go run ./cmd/server
//   2. Then start the swarm: BOTS_COUNT=20 go run ./cmd/bots
// =============================================================================
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"bomb-arena/internal/bot"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	log.Println("================================")
	log.Println("  BOMB ARENA - BOT SWARM")
	log.Println("================================")

	v := viper.New()
	v.SetEnvPrefix("BOTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("url", "ws://localhost:3000/ws")
	v.SetDefault("count", 10)
	v.SetDefault("interval", 250*time.Millisecond)
	v.SetDefault("bomb_chance", 0.15)
	v.SetDefault("subprotocol", "json")
	v.SetDefault("seed", 0)

	count := v.GetInt("count")
	seed := v.GetInt64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	log.Printf("🤖 %d bots -> %s (%s, every %v, seed %d)",
		count, v.GetString("url"), v.GetString("subprotocol"), v.GetDuration("interval"), seed)

	var (
		mu   sync.Mutex
		bots []*bot.Bot
		wg   sync.WaitGroup
	)
	for i := 0; i < count; i++ {
		cfg := bot.Config{
			URL:         v.GetString("url"),
			Color:       fmt.Sprintf("#%06x", rng.Intn(0x1000000)),
			Subprotocol: v.GetString("subprotocol"),
			Interval:    v.GetDuration("interval"),
			BombChance:  v.GetFloat64("bomb_chance"),
			Rand:        rand.New(rand.NewSource(rng.Int63())),
		}
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			b, err := bot.Dial(ctx, cfg)
			if err != nil {
				log.Printf("⚠️ Bot %d: %v", n, err)
				return
			}
			b.Start()
			mu.Lock()
			bots = append(bots, b)
			mu.Unlock()
			log.Printf("🤖 Bot %d joined as %s", n, b.ID())
		}(i)
	}
	wg.Wait()

	if len(bots) == 0 {
		log.Fatal("❌ No bot could join")
	}
	log.Printf("✅ %d/%d bots playing. Press Ctrl+C to stop.", len(bots), count)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-quit:
			log.Println("🛑 Disconnecting bots...")
			for _, b := range bots {
				b.Close()
			}
			log.Println("👋 Goodbye!")
			return
		case <-statsTicker.C:
			var sent, received uint64
			alive := 0
			for _, b := range bots {
				s, r := b.Stats()
				sent += s
				received += r
				select {
				case <-b.Done():
				default:
					alive++
				}
			}
			log.Printf("📊 %d connected, %d intents sent, %d frames received", alive, sent, received)
		}
	}
}
