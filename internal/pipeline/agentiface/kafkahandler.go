package agentiface

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/rs/zerolog"
)

// CommandEnvelope is the Kafka message shape a remote agent sends to invoke
// one call against a KnowledgeBase. Grounded on
// internal/orchestrator/handler.go's CommandEnvelope, narrowed from an
// arbitrary workflow name to the two KnowledgeBase methods.
type CommandEnvelope struct {
	CorrelationID string         `json:"correlation_id"`
	Workflow      string         `json:"workflow"`
	ReplyTopic    string         `json:"reply_topic,omitempty"`
	Attrs         map[string]any `json:"attrs,omitempty"`
}

// ResponseEnvelope is the reply (or DLQ) message shape.
type ResponseEnvelope struct {
	CorrelationID string   `json:"correlation_id"`
	Status        string   `json:"status"`
	Pairs         []string `json:"pairs,omitempty"`
	Collections   []string `json:"collections,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Producer abstracts the Kafka writer the handler replies through.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// DedupeStore suppresses reprocessing a command already answered under the
// same correlation id.
type DedupeStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

const (
	workflowSearch      = "search_knowledge_base"
	workflowCollections = "list_collections"
)

// HandleCommand processes one Kafka command message against kb, replying on
// the command's reply topic (or defaultReplyTopic) and routing malformed or
// failed commands to a "<reply_topic>.dlq" topic. Grounded on
// internal/orchestrator/handler.go's HandleCommandMessage dedupe-then-
// execute-then-reply flow, with the generic Runner.Execute call replaced by
// a direct switch over the two KnowledgeBase operations.
func HandleCommand(ctx context.Context, kb KnowledgeBase, dedupe DedupeStore, producer Producer, msg kafka.Message, defaultReplyTopic string, dedupeTTL time.Duration, log zerolog.Logger) error {
	var cmd CommandEnvelope
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return publishError(ctx, producer, defaultReplyTopic, string(msg.Key), fmt.Sprintf("malformed command JSON: %v", err), log)
	}
	if cmd.CorrelationID == "" {
		return publishError(ctx, producer, pickReplyTopic(cmd.ReplyTopic, defaultReplyTopic), string(msg.Key), "missing correlation_id", log)
	}

	if prev, err := dedupe.Get(ctx, cmd.CorrelationID); err != nil {
		return fmt.Errorf("agentiface: dedupe get: %w", err)
	} else if prev != "" {
		log.Debug().Str("correlation_id", cmd.CorrelationID).Msg("dedupe hit, skipping")
		return nil
	}

	replyTopic := pickReplyTopic(cmd.ReplyTopic, defaultReplyTopic)
	resp, err := execute(ctx, kb, cmd)
	if err != nil {
		return publishError(ctx, producer, replyTopic, cmd.CorrelationID, err.Error(), log)
	}
	resp.CorrelationID = cmd.CorrelationID
	resp.Status = "success"

	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("agentiface: marshal response: %w", err)
	}
	if err := producer.WriteMessages(ctx, kafka.Message{Topic: replyTopic, Key: []byte(cmd.CorrelationID), Value: payload}); err != nil {
		return fmt.Errorf("agentiface: publish response: %w", err)
	}
	if err := dedupe.Set(ctx, cmd.CorrelationID, string(payload), dedupeTTL); err != nil {
		return fmt.Errorf("agentiface: dedupe set: %w", err)
	}
	return nil
}

func execute(ctx context.Context, kb KnowledgeBase, cmd CommandEnvelope) (ResponseEnvelope, error) {
	switch strings.TrimSpace(cmd.Workflow) {
	case workflowSearch:
		query, _ := cmd.Attrs["query"].(string)
		collection, _ := cmd.Attrs["collection"].(string)
		if query == "" || collection == "" {
			return ResponseEnvelope{}, fmt.Errorf("search_knowledge_base requires query and collection attrs")
		}
		pairs, err := kb.SearchKnowledgeBase(ctx, query, collection)
		if err != nil {
			return ResponseEnvelope{}, err
		}
		out := make([]string, 0, len(pairs))
		for _, p := range pairs {
			out = append(out, p.Question+" => "+p.Answer)
		}
		return ResponseEnvelope{Pairs: out}, nil
	case workflowCollections:
		cols, err := kb.ListCollections(ctx)
		if err != nil {
			return ResponseEnvelope{}, err
		}
		return ResponseEnvelope{Collections: cols}, nil
	default:
		return ResponseEnvelope{}, fmt.Errorf("unknown workflow %q", cmd.Workflow)
	}
}

func publishError(ctx context.Context, producer Producer, replyTopic, correlationID, msg string, log zerolog.Logger) error {
	env := ResponseEnvelope{CorrelationID: correlationID, Status: "error", Error: msg}
	payload, _ := json.Marshal(env)
	dlqTopic := dlqTopicFor(replyTopic)
	if err := producer.WriteMessages(ctx, kafka.Message{Topic: dlqTopic, Key: []byte(correlationID), Value: payload}); err != nil {
		log.Warn().Err(err).Str("correlation_id", correlationID).Msg("failed to publish DLQ message")
	}
	return nil
}

func pickReplyTopic(cmdTopic, defaultTopic string) string {
	if t := strings.TrimSpace(cmdTopic); t != "" {
		return t
	}
	return defaultTopic
}

// dlqTopicFor avoids creating "topic.dlq.dlq" when replyTopic already
// targets a DLQ.
func dlqTopicFor(replyTopic string) string {
	rt := strings.TrimSpace(replyTopic)
	if rt == "" {
		return "qagen.dlq"
	}
	if strings.HasSuffix(rt, ".dlq") {
		return rt
	}
	return rt + ".dlq"
}
