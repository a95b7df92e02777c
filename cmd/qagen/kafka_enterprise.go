//go:build enterprise
// +build enterprise

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nakashima2toshio/qagen/internal/config"
	"github.com/nakashima2toshio/qagen/internal/pipeline/dispatcher"
)

// newKafkaDispatcher builds the Kafka-backed dispatcher. It only exists in
// builds tagged "enterprise", matching internal/pipeline/dispatcher/kafka.go
// and the internal/orchestrator Kafka admin helpers it wires in.
func newKafkaDispatcher(cfg config.Config, workers, batchSize int, logger zerolog.Logger) (dispatcher.Dispatcher, error) {
	store, err := dispatcher.NewRedisResultStore(cfg.RedisAddr, "")
	if err != nil {
		return nil, fmt.Errorf("redis result store: %w", err)
	}
	llm, err := soloProvider(cfg)
	if err != nil {
		return nil, err
	}
	kd, err := dispatcher.NewKafka(context.Background(), strings.Split(cfg.KafkaBrokers, ","), "qagen-tasks", "qagen-workers", workers, store, llm, logger)
	if err != nil {
		return nil, err
	}
	return kd.WithBatchSize(batchSize), nil
}
