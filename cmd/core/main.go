package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/adapter/in/rest"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/adapter/out/audit"
	mysql_adapter "github.com/JoeShih716/go-wallet-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-wallet-ledger/pkg/mysql"
	"github.com/JoeShih716/go-wallet-ledger/pkg/wal"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	MySQL mysql.Config `yaml:"mysql"`
	Audit struct {
		JournalPath string `yaml:"journal_path"`
		WebhookURL  string `yaml:"webhook_url"`
	} `yaml:"audit"`
}

func main() {
	// 1. Logger (JSON structured)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 2. 載入設定 (.env 蓋過 yaml，機密不進版控)
	cfg := loadConfig()

	// 3. 初始化 MySQL Client (Base Infrastructure)
	dbClient, err := mysql.NewClient(cfg.MySQL)
	if err != nil {
		slog.Error("failed to connect to mysql", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to mysql")

	store := mysql_adapter.NewStore(dbClient.DB())
	if err := store.AutoMigrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// 4. 稽核 sink：journal 永遠開，webhook 有設定才掛
	journal, err := wal.Open(cfg.Audit.JournalPath)
	if err != nil {
		slog.Error("failed to open audit journal", "error", err, "path", cfg.Audit.JournalPath)
		os.Exit(1)
	}

	sinks := audit.Fanout{audit.NewJournalSink(journal)}
	if cfg.Audit.WebhookURL != "" {
		sinks = append(sinks, audit.NewWebhookSink(cfg.Audit.WebhookURL))
	}

	// 5. 初始化交易引擎
	engine := usecase.NewEngine(store, sinks, logger)

	// 6. HTTP Adapter (Driving Adapter)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	rest.NewServer(engine).Register(app)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if err := dbClient.Close(); err != nil {
		slog.Error("closing mysql failed", "error", err)
	}
	if err := journal.Close(); err != nil {
		slog.Error("closing audit journal failed", "error", err)
	}
	slog.Info("server exited")
}

func loadConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on system env variables")
	}

	cfgData, err := os.ReadFile("config/config.yaml")
	if err != nil {
		slog.Error("failed to read config file", "error", err)
		os.Exit(1)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		slog.Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	// 機密以環境變數覆寫
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		cfg.MySQL.Password = v
	}
	if v := os.Getenv("AUDIT_WEBHOOK_URL"); v != "" {
		cfg.Audit.WebhookURL = v
	}

	// 補全預設配置 (如果 yaml 沒寫)
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = mysql.Duration(30 * time.Minute)
	}
	if cfg.Audit.JournalPath == "" {
		cfg.Audit.JournalPath = "audit.log"
	}
	return cfg
}
