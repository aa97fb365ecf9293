// auditship consumes committed audit records from Kafka and pushes them to Loki.
// Requires KAFKA_BROKERS and LOKI_URL; AUDIT_KAFKA_TOPIC and KAFKA_GROUP_ID have defaults.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"customer-panel/backend/internal/config"
	"customer-panel/backend/internal/telemetry/loki"
)

const (
	lokiJob     = "panel-audit"
	pushTimeout = 10 * time.Second
	retryDelay  = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("auditship: KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		log.Fatal("auditship: LOKI_URL is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    cfg.AuditKafkaTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	defer reader.Close()
	client := loki.NewClient(cfg.LokiURL, lokiJob, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("auditship: shutting down...")
		cancel()
	}()

	log.Printf("auditship: consuming %s (group %s), pushing to %s", cfg.AuditKafkaTopic, cfg.KafkaGroupID, cfg.LokiURL)

	for {
		// Offsets are committed only after Loki accepted the record, so a crash re-ships rather than drops.
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("auditship: stopped")
				return
			}
			log.Printf("auditship: kafka fetch: %v", err)
			continue
		}
		if !push(ctx, client, msg) {
			return
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Printf("auditship: commit offset %d: %v", msg.Offset, err)
		}
	}
}

// push retries until Loki accepts msg. It returns false when ctx is cancelled first.
func push(ctx context.Context, client *loki.Client, msg kafka.Message) bool {
	for {
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		err := client.PushRecordJSON(pushCtx, msg.Value)
		cancel()
		if err == nil {
			return true
		}
		log.Printf("auditship: loki push of offset %d: %v", msg.Offset, err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(retryDelay):
		}
	}
}
