// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metrics

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// InfluxSink streams recorded samples to an InfluxDB bucket.
//
// # Description
//
// The non-blocking write API batches points internally, so Write
// returns immediately and failures surface on the async error channel
// rather than the recording path. The sink is optional; the recorder
// works identically without one.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	stop     chan struct{}
	log      *logging.Logger
}

var _ Sink = (*InfluxSink)(nil)

// NewInfluxSink connects to InfluxDB and starts draining write errors.
func NewInfluxSink(url, token, org, bucket string, log *logging.Logger) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	s := &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPI(org, bucket),
		stop:     make(chan struct{}),
		log:      log,
	}

	go func() {
		errCh := s.writeAPI.Errors()
		for {
			select {
			case err, ok := <-errCh:
				if !ok {
					return
				}
				if s.log != nil {
					s.log.Warn("influx write failed", "error", err.Error())
				}
			case <-s.stop:
				return
			}
		}
	}()
	return s
}

// Write enqueues one sample as an Influx point.
func (s *InfluxSink) Write(m datatypes.PerformanceMetric) {
	tags := map[string]string{
		"metric":   m.Metric,
		"severity": string(m.Severity),
	}
	if m.Endpoint != "" {
		tags["endpoint"] = m.Endpoint
	}
	if m.Method != "" {
		tags["method"] = m.Method
	}
	fields := map[string]any{"value": m.Value}
	if m.Unit != "" {
		fields["unit"] = m.Unit
	}

	s.writeAPI.WritePoint(influxdb2.NewPoint("telemetry_metric", tags, fields, m.Timestamp))
}

// Close flushes pending points and releases the client.
func (s *InfluxSink) Close() error {
	close(s.stop)
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}
