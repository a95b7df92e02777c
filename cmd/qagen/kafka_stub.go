//go:build !enterprise
// +build !enterprise

package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nakashima2toshio/qagen/internal/config"
	"github.com/nakashima2toshio/qagen/internal/pipeline/dispatcher"
)

// newKafkaDispatcher reports a configuration error in default builds; the
// Kafka dispatcher backend requires building with -tags enterprise, since it
// depends on internal/orchestrator's enterprise-gated admin helpers.
func newKafkaDispatcher(cfg config.Config, workers, batchSize int, logger zerolog.Logger) (dispatcher.Dispatcher, error) {
	return nil, fmt.Errorf("kafka dispatcher requires building qagen with -tags enterprise")
}
