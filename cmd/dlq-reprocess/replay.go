package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// dlqEnvelope повторяет формат, в котором outbox-воркер кладёт события в DLQ:
// внешний конверт publisher-а с payload, обёрнутым в DLQ-метаданные.
type dlqEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

type dlqPayload struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
}

type replayEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

type replayMessage struct {
	topic string
	key   string
	value []byte
}

type brokerOffsets interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionStream interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type streamSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error)
	Close() error
}

type replaySink interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

// replayDeps собирает Kafka-зависимости прогона; sink nil в dry-run.
type replayDeps struct {
	offsets brokerOffsets
	streams streamSource
	sink    replaySink
}

func (d replayDeps) close() {
	if d.sink != nil {
		_ = d.sink.Close()
	}
	if d.streams != nil {
		_ = d.streams.Close()
	}
	if d.offsets != nil {
		_ = d.offsets.Close()
	}
}

type consumerSource struct {
	consumer sarama.Consumer
}

func (s consumerSource) ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error) {
	stream, err := s.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (s consumerSource) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}

// newReplayDeps подменяется в тестах стабами без брокера.
var newReplayDeps = func(cfg replayConfig) (replayDeps, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return replayDeps{}, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return replayDeps{}, fmt.Errorf("create kafka consumer: %w", err)
	}

	deps := replayDeps{offsets: client, streams: consumerSource{consumer: rawConsumer}}
	if !cfg.execute {
		return deps, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Compression = sarama.CompressionSnappy
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		deps.close()
		return replayDeps{}, fmt.Errorf("create kafka producer: %w", err)
	}
	deps.sink = producer

	return deps, nil
}

func run(ctx context.Context, cfg replayConfig) error {
	log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
		"from_newest":  cfg.fromNewest,
	}).Info("starting dlq replay")

	deps, err := newReplayDeps(cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	return runReplay(ctx, cfg, deps)
}

type replayStats struct {
	scanned  int
	requeued int
	skipped  int
}

func (s *replayStats) add(other replayStats) {
	s.scanned += other.scanned
	s.requeued += other.requeued
	s.skipped += other.skipped
}

func runReplay(ctx context.Context, cfg replayConfig, deps replayDeps) error {
	if deps.offsets == nil || deps.streams == nil {
		return fmt.Errorf("kafka client and consumer are required")
	}
	if cfg.execute && deps.sink == nil {
		return fmt.Errorf("producer is required in execute mode")
	}

	partitions, err := deps.offsets.Partitions(cfg.sourceTopic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", cfg.sourceTopic).Warn("source topic has no partitions")
		return nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var total replayStats
	for _, partition := range partitions {
		remaining := cfg.limit - total.scanned
		if remaining <= 0 {
			break
		}

		stats, err := drainPartition(ctx, cfg, deps, partition, remaining)
		if err != nil {
			return err
		}
		total.add(stats)
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":     mode,
		"scanned":  total.scanned,
		"requeued": total.requeued,
		"skipped":  total.skipped,
	}).Info("dlq replay finished")

	return nil
}

// drainPartition вычитывает партицию от стартового offset до зафиксированного
// на момент запуска конца. Idle-таймер защищает от зависания на пустом хвосте.
func drainPartition(ctx context.Context, cfg replayConfig, deps replayDeps, partition int32, limit int) (replayStats, error) {
	var stats replayStats
	if limit <= 0 {
		return stats, nil
	}

	oldest, err := deps.offsets.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := deps.offsets.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	startOffset := oldest
	if cfg.fromNewest {
		if candidate := newest - int64(limit); candidate > oldest {
			startOffset = candidate
		}
	}

	stream, err := deps.streams.ConsumePartition(cfg.sourceTopic, partition, startOffset)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = stream.Close() }()

	idleTimer := time.NewTimer(cfg.idleTimeout)
	defer idleTimer.Stop()

	for stats.scanned < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case err := <-stream.Errors():
			if err != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, err)
			}
		case msg, ok := <-stream.Messages():
			if !ok || msg == nil {
				return stats, nil
			}
			rearmTimer(idleTimer, cfg.idleTimeout)

			if msg.Offset >= newest {
				return stats, nil
			}
			if err := replayOne(cfg, deps.sink, msg, &stats); err != nil {
				return stats, err
			}
			if msg.Offset+1 >= newest {
				return stats, nil
			}
		case <-idleTimer.C:
			return stats, nil
		}
	}

	return stats, nil
}

func rearmTimer(timer *time.Timer, timeout time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(timeout)
}

// replayOne разбирает одно DLQ-сообщение и либо публикует его в целевой
// топик, либо логирует кандидата в dry-run.
func replayOne(cfg replayConfig, sink replaySink, msg *sarama.ConsumerMessage, stats *replayStats) error {
	stats.scanned++

	outbound, ok, err := buildReplayMessage(msg, cfg.targetTopic)
	if err != nil {
		stats.skipped++
		log.WithError(err).WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("skip unsupported dlq message")
		return nil
	}
	if !ok {
		stats.skipped++
		return nil
	}

	if !cfg.execute {
		log.WithFields(log.Fields{
			"partition":    msg.Partition,
			"offset":       msg.Offset,
			"target_topic": outbound.topic,
			"key":          outbound.key,
		}).Info("dlq replay candidate")
		stats.requeued++
		return nil
	}

	if err := publishReplay(sink, outbound); err != nil {
		return fmt.Errorf("publish replay message: %w", err)
	}
	stats.requeued++
	return nil
}

func publishReplay(sink replaySink, msg replayMessage) error {
	if sink == nil {
		return fmt.Errorf("producer is nil")
	}

	_, _, err := sink.SendMessage(&sarama.ProducerMessage{
		Topic:     msg.topic,
		Key:       sarama.StringEncoder(msg.key),
		Value:     sarama.ByteEncoder(msg.value),
		Timestamp: time.Now().UTC(),
	})
	return err
}

// buildReplayMessage разворачивает DLQ-конверт обратно в событие резолюции.
// Сообщения чужого формата пропускаются без ошибки.
func buildReplayMessage(msg *sarama.ConsumerMessage, targetTopic string) (replayMessage, bool, error) {
	var envelope dlqEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return replayMessage{}, false, nil
	}
	if len(envelope.Payload) == 0 {
		return replayMessage{}, false, nil
	}

	var wrapped dlqPayload
	if err := json.Unmarshal(envelope.Payload, &wrapped); err != nil {
		return replayMessage{}, false, fmt.Errorf("decode dlq payload: %w", err)
	}
	if len(wrapped.Payload) == 0 {
		return replayMessage{}, false, fmt.Errorf("dlq payload does not contain original event payload")
	}

	replay := replayEnvelope{
		ID:            coalesce(wrapped.OutboxID, envelope.ID),
		AggregateType: coalesce(wrapped.AggregateType, envelope.AggregateType),
		AggregateID:   coalesce(wrapped.AggregateID, envelope.AggregateID),
		EventType:     coalesce(wrapped.EventType, envelope.EventType),
		Payload:       wrapped.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return replayMessage{}, false, fmt.Errorf("encode replay envelope: %w", err)
	}

	key := replay.AggregateID
	if key == "" {
		key = replay.ID
	}

	return replayMessage{topic: targetTopic, key: key, value: encoded}, true, nil
}

func coalesce(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
