// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/anomaly"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/audit"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/backup"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/bus"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/config"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/handlers"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/health"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/logstore"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/metrics"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/notify"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/patterns"
)

// shutdownTimeout bounds graceful HTTP drain.
const shutdownTimeout = 10 * time.Second

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:   parseLogLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "telemetry",
		JSON:    cfg.Logging.JSON,
	})
	defer log.Close()

	gin.SetMode(cfg.Server.Mode)

	// --- Tracing ---
	if cfg.Tracing.Enabled {
		cleanup, err := initTracer(cfg.Tracing.Endpoint, log)
		if err != nil {
			return fmt.Errorf("setting up OTLP tracer: %w", err)
		}
		defer cleanup(context.Background())
	}

	// --- Core pipeline ---
	events := bus.New(log)
	store := logstore.New(cfg.Store.LogCapacity, events, log)
	recorder := metrics.New(cfg.Store.MetricSeriesCap, events, log)
	for metric, th := range cfg.Thresholds {
		recorder.SetThreshold(metric, th)
	}
	detector := anomaly.New(cfg.Store.MetricSeriesCap, cfg.Store.AnomalyHistory, events, log)
	matcher := patterns.New(events, log)

	store.AddHook(matcher.Evaluate)
	recorder.AddHook(detector.Observe)

	if cfg.Influx.Enabled {
		sink := metrics.NewInfluxSink(cfg.Influx.URL, cfg.Influx.Token,
			cfg.Influx.Org, cfg.Influx.Bucket, log)
		recorder.SetSink(sink)
		log.Info("influx metric sink enabled", "url", cfg.Influx.URL)
	}
	defer recorder.Close()

	// --- Notifications ---
	nstore, err := notify.OpenBadgerStore(cfg.Notifications.StoreDir, log)
	if err != nil {
		return fmt.Errorf("opening notification store: %w", err)
	}
	dispatcher := notify.New(nstore, log)
	hub := notify.NewSocketHub(log)
	dispatcher.RegisterChannel(hub)
	dispatcher.RegisterChannel(notify.NewLogOnlyChannel(datatypes.ChannelSMS, log))
	dispatcher.RegisterChannel(notify.NewLogOnlyChannel(datatypes.ChannelPush, log))

	if cfg.Notifications.Email.Enabled {
		email, err := notify.NewEmailChannel(notify.EmailConfig{
			Host:      cfg.Notifications.Email.Host,
			Port:      cfg.Notifications.Email.Port,
			Username:  cfg.Notifications.Email.Username,
			Password:  cfg.Notifications.Email.Password,
			From:      cfg.Notifications.Email.From,
			DefaultTo: cfg.Notifications.Email.DefaultTo,
		})
		if err != nil {
			return fmt.Errorf("configuring email channel: %w", err)
		}
		dispatcher.RegisterChannel(email)
	}
	if cfg.Notifications.Webhook.Enabled {
		webhook, err := notify.NewWebhookChannel(notify.WebhookConfig{
			URL:           cfg.Notifications.Webhook.URL,
			Secret:        cfg.Notifications.Webhook.Secret,
			RatePerMinute: cfg.Notifications.Webhook.RatePerMinute,
		})
		if err != nil {
			return fmt.Errorf("configuring webhook channel: %w", err)
		}
		dispatcher.RegisterChannel(webhook)
	}
	dispatcher.StartSweeper(cfg.Notifications.SweepInterval)
	defer dispatcher.Stop()
	defer hub.Close()

	wireAlertNotifications(matcher, detector, dispatcher, log)

	// --- Security ---
	tracker := audit.New(cfg.Security.ThreatFile, dispatcher, log)

	// --- Health ---
	checker := health.New(events, log)
	health.RegisterBuiltinChecks(checker, store, events, cfg.Backup.DataDir)
	checker.SetCriticalFailureFunc(func(result datatypes.HealthCheckResult) {
		_, _, err := dispatcher.Send(context.Background(), datatypes.Notification{
			Title:    fmt.Sprintf("Critical health check failed: %s", result.Name),
			Body:     result.Message,
			Category: "health",
			Priority: datatypes.PriorityCritical,
			Channels: []datatypes.ChannelType{datatypes.ChannelSocket, datatypes.ChannelEmail},
		})
		if err != nil {
			log.Error("health failure notification rejected", "error", err.Error())
		}
	})
	checker.Start()
	defer checker.Stop()

	// --- Backups ---
	// Constructed even when scheduling is disabled so manual triggers
	// through the API still work.
	backups := backup.New(cfg.Backup.DataDir, cfg.Backup.BackupDir, dispatcher, events, log)
	if cfg.Backup.Enabled {
		backups.Start()
		defer backups.Stop()
	}

	// --- Threshold hot reload ---
	if configPath != "" {
		watcher, err := config.WatchThresholds(configPath, recorder, log)
		if err != nil {
			log.Warn("threshold hot reload unavailable", "error", err.Error())
		} else {
			defer watcher.Close()
		}
	}

	// --- HTTP ---
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Tracing.Enabled {
		router.Use(otelgin.Middleware("brimu-telemetry"))
	}
	router.Use(handlers.BlockedIPGuard(tracker))
	router.Use(handlers.RequestTelemetry(store, recorder))

	handlers.RegisterRoutes(router, &handlers.Handlers{
		Store:      store,
		Matcher:    matcher,
		Recorder:   recorder,
		Detector:   detector,
		Health:     checker,
		Dispatcher: dispatcher,
		Tracker:    tracker,
		Backups:    backups,
		Events:     events,
		Hub:        hub,
		Log:        log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("telemetry server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	events.Close()
	return nil
}

// wireAlertNotifications forwards pattern alerts and critical anomalies
// to operators.
func wireAlertNotifications(matcher *patterns.Matcher, detector *anomaly.Detector,
	dispatcher *notify.Dispatcher, log *logging.Logger) {

	matcher.SetAlertFunc(func(alert datatypes.PatternAlert) {
		priority := datatypes.PriorityHigh
		channels := []datatypes.ChannelType{datatypes.ChannelSocket}
		if alert.Severity == datatypes.SeverityCritical {
			priority = datatypes.PriorityCritical
			channels = append(channels, datatypes.ChannelEmail)
		}
		_, _, err := dispatcher.Send(context.Background(), datatypes.Notification{
			Title:    fmt.Sprintf("Pattern alert: %s", alert.PatternID),
			Body:     fmt.Sprintf("%d matches. Last: %s", alert.MatchCount, alert.Sample),
			Category: "alerts",
			Priority: priority,
			Channels: channels,
			Data:     map[string]any{"alertId": alert.ID, "patternId": alert.PatternID},
		})
		if err != nil {
			log.Error("pattern alert notification rejected", "error", err.Error())
		}
	})

	detector.SetAnomalyFunc(func(a datatypes.Anomaly) {
		if a.Severity != datatypes.SeverityCritical {
			return
		}
		_, _, err := dispatcher.Send(context.Background(), datatypes.Notification{
			Title:    fmt.Sprintf("Anomaly: %s %s baseline", a.Metric, a.Direction),
			Body:     a.Suggestion,
			Category: "anomalies",
			Priority: datatypes.PriorityHigh,
			Channels: []datatypes.ChannelType{datatypes.ChannelSocket, datatypes.ChannelEmail},
			Data:     map[string]any{"metric": a.Metric, "zscore": a.ZScore},
		})
		if err != nil {
			log.Error("anomaly notification rejected", "error", err.Error())
		}
	})
}

func parseLogLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
