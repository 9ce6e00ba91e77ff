// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command telemetryd runs the Brimu telemetry service.
//
// The service ingests structured log entries and performance samples,
// evaluates alert patterns and statistical anomalies, orchestrates
// health checks and scheduled backups, and exposes everything over an
// HTTP API with live SSE and websocket streams.
//
// # Usage
//
//	# Build
//	go build -o telemetryd ./cmd/telemetryd
//
//	# Run with defaults (listens on :8090)
//	./telemetryd serve
//
//	# Run with a config file; the thresholds section hot-reloads
//	./telemetryd serve --config config.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "telemetryd",
		Short: "The Brimu telemetry and observability service",
		Long: `telemetryd collects logs and performance metrics from Brimu
services, detects alert patterns and anomalies, tracks threats, runs
health checks, and schedules backups.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the telemetry HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the telemetryd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("telemetryd", version)
		},
	}
)

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
