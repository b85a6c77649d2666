package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iabalyuk/farewizard/airports"
	"github.com/iabalyuk/farewizard/bot"
	"github.com/iabalyuk/farewizard/storage"
	"github.com/iabalyuk/farewizard/worker"
)

func main() {
	// Parse command-line flags
	token := flag.String("token", "", "Telegram bot token (or use TELEGRAM_BOT_TOKEN env var)")
	sweepInterval := flag.Duration("sweepInterval", 6*time.Hour, "How often expired configurations are swept")
	flag.Parse()

	// --- Configuration from Environment Variables ---
	botToken := *token
	if botToken == "" {
		botToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if botToken == "" {
		log.Fatal("Telegram bot token is required. Provide it with -token flag or TELEGRAM_BOT_TOKEN environment variable")
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "data/farewizard.db"
		log.Printf("DB_PATH not set, using default: %s", dbPath)
	}

	airportsPath := os.Getenv("AIRPORTS_PATH")
	// An empty AIRPORTS_PATH means the built-in dataset.
	// --- End Configuration ---

	// Initialize the airport lookup
	index, err := airports.Load(airportsPath)
	if err != nil {
		log.Fatalf("Failed to load airports dataset: %v", err)
	}

	// Initialize SQLite storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite storage at %s: %v", dbPath, err)
	}
	defer store.Close()

	// Initialize the bot
	telegramBot, err := bot.New(botToken, index, store)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	// Initialize and start the background worker
	bgWorker := worker.NewBackgroundWorker(worker.NewBackgroundWorkerConfig{
		Storage:  store,
		NotifyCh: telegramBot.GetNotifyChannel(),
		Interval: *sweepInterval,
	})
	bgWorker.Start()
	log.Printf("Background worker started (DB: %s, sweep every %v)", dbPath, *sweepInterval)

	// Start the bot in a separate goroutine
	go func() {
		if err := telegramBot.Start(); err != nil {
			log.Fatalf("Failed to start bot: %v", err)
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	receivedSignal := <-sigCh
	log.Printf("Received signal: %v", receivedSignal)

	log.Println("Initiating graceful shutdown...")
	bgWorker.Stop()
	log.Println("Background worker stopped")
	log.Println("Bot stopped")
}
