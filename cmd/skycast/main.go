package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"skycast/internal/alerts"
	"skycast/internal/api"
	"skycast/internal/app"
	"skycast/internal/gateway"
	"skycast/internal/notify"
	"skycast/internal/store"
	"skycast/internal/worker"
)

var cli struct {
	DB              string        `name:"db" default:"data/skycast.db" env:"SKYCAST_DB" help:"Path to SQLite database."`
	Port            string        `default:"8080" env:"SKYCAST_PORT" help:"HTTP server port."`
	RefreshInterval time.Duration `default:"10m" env:"SKYCAST_REFRESH_INTERVAL" help:"Foreground forecast refresh interval."`
	WorkerSchedule  string        `default:"@every 30m" env:"SKYCAST_WORKER_SCHEDULE" help:"Background weather-update schedule."`
	NoWorker        bool          `help:"Disable the background worker."`
	WebhookURL      string        `env:"SKYCAST_WEBHOOK_URL" help:"Webhook URL for native notifications."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("skycast"),
		kong.Description("Weather dashboard service."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	// Native notifications are delivered over a webhook when one is
	// configured, and only once the user has granted permission.
	var notifier notify.Notifier = notify.Nop{}
	if cli.WebhookURL != "" {
		notifier = notify.NewWebhook(cli.WebhookURL)
	}
	gated := notify.Gated{Granted: st.NotificationPermission, Next: notifier}

	gw := gateway.New()
	queue := alerts.NewQueue(gated)
	defer queue.Close()

	wrk := worker.New(gw, gated)
	session := app.NewSession(gw, st, queue, wrk)
	server := api.NewServer(session, st, queue, gw, cli.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go session.Run(ctx, cli.RefreshInterval)

	if !cli.NoWorker {
		go func() {
			if err := wrk.Run(ctx, cli.WorkerSchedule); err != nil {
				log.Printf("worker: %v", err)
			}
		}()
	} else {
		log.Println("background worker disabled (--no-worker)")
	}

	log.Printf("starting server on :%s", cli.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
