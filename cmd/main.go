package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/AlekseyZapadovnikov/msg-stats/conf"
	"github.com/AlekseyZapadovnikov/msg-stats/internal/cache"
	"github.com/AlekseyZapadovnikov/msg-stats/internal/repository"
	"github.com/AlekseyZapadovnikov/msg-stats/internal/service"
	"github.com/AlekseyZapadovnikov/msg-stats/internal/web"
)

// main конфигурирует сервис, поднимает хранилище, кэш и HTTP-сервер, а затем управляет их жизненным циклом.
func main() {
	// Берём путь до конфигурации из окружения либо используем значение по умолчанию.
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "./conf/config.json"
	}

	// Загружаем конфигурацию.
	config := conf.MustLoad(cfgPath)
	setupLogger(config.LogConf)
	slog.Info("Configuration loaded successfully", "config_path", cfgPath)
	slog.Info("Database configuration", "host", config.DBConf.Host, "port", config.DBConf.Port, "user", config.DBConf.User, "database", config.DBConf.Name, "timezone", config.DBConf.TimeZone)

	// Создаём подключение к базе данных.
	ctx := context.Background()
	DBase, err := repository.NewStorage(ctx, &config.DBConf)
	if err != nil {
		slog.Error("Database initialization failed", "error", err)
		os.Exit(1)
	}
	defer DBase.Close()
	slog.Info("Database storage initialized successfully")

	opts := []service.Option{
		service.WithLocation(config.ReportConf.Location()),
		service.WithMaxRangeDays(config.ReportConf.RangeLimit()),
	}

	// Кэш отчётов подключаем только если он включён в конфигурации.
	if config.RedisConf.Enabled {
		reportCache, client, err := cache.NewRedisCache(ctx, config.RedisConf)
		if err != nil {
			slog.Error("Redis initialization failed", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		opts = append(opts, service.WithCache(reportCache, config.ReportConf.TTL()))
		slog.Info("Report cache enabled", "addr", config.RedisConf.Addr, "ttl", config.ReportConf.TTL())
	}

	// Создаём менеджер отчётов (реализация ReportService).
	reportManager := service.NewReportManager(DBase, opts...)
	slog.Info("Report manager created successfully", "timezone", config.ReportConf.Location().String())

	// Поднимаем HTTP-сервер.
	server := web.New(config.HTTPServConf, config.RateLimit, reportManager, DBase)
	slog.Info("HTTP server created successfully", "address", server.Address)

	// Запускаем сервер в отдельной горутине.
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	slog.Info("Message stats service started successfully", "address", server.Address)

	// Ожидаем сигнал остановки для плавного завершения работы.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		return
	}

	// Выполняем корректное завершение сервера с тайм-аутом.
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return
	}

	slog.Info("Server exited properly")
}

// setupLogger настраивает slog по секции log конфигурации.
func setupLogger(cfg conf.LogConf) {
	handlerOpts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	}

	slog.SetDefault(slog.New(handler))
}
