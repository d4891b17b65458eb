package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
)

func dlqConsumerMessage(t *testing.T, partition int32, offset int64, eventType, aggregateID string) *sarama.ConsumerMessage {
	t.Helper()

	envelope := map[string]any{
		"id":             "outbox-1",
		"aggregate_type": "offer",
		"aggregate_id":   aggregateID,
		"event_type":     eventType,
		"payload": map[string]any{
			"outbox_id":      "outbox-1",
			"aggregate_type": "offer",
			"aggregate_id":   aggregateID,
			"event_type":     eventType,
			"payload": map[string]any{
				"offer_id":   aggregateID,
				"request_id": "req-1",
			},
			"publish_error": "kafka timeout",
		},
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal dlq envelope failed: %v", err)
	}

	return &sarama.ConsumerMessage{Partition: partition, Offset: offset, Value: raw}
}

func TestBuildReplayMessage_DLQPayload(t *testing.T) {
	msg := dlqConsumerMessage(t, 0, 0, "offer.accepted", "offer-1")

	got, ok, err := buildReplayMessage(msg, "marketplace.resolution.events")
	if err != nil {
		t.Fatalf("buildReplayMessage failed: %v", err)
	}
	if !ok {
		t.Fatal("expected replay candidate")
	}
	if got.topic != "marketplace.resolution.events" {
		t.Fatalf("unexpected topic: %s", got.topic)
	}
	if got.key != "offer-1" {
		t.Fatalf("unexpected key: %s", got.key)
	}

	var replay replayEnvelope
	if err := json.Unmarshal(got.value, &replay); err != nil {
		t.Fatalf("replay value must decode: %v", err)
	}
	if replay.EventType != "offer.accepted" {
		t.Fatalf("unexpected event type: %s", replay.EventType)
	}
	if replay.AggregateID != "offer-1" {
		t.Fatalf("unexpected aggregate id: %s", replay.AggregateID)
	}
}

func TestBuildReplayMessage_MissingNestedPayload(t *testing.T) {
	envelope := map[string]any{
		"id":             "outbox-1",
		"aggregate_type": "offer",
		"aggregate_id":   "offer-1",
		"event_type":     "offer.accepted",
		"payload": map[string]any{
			"outbox_id":     "outbox-1",
			"publish_error": "kafka timeout",
		},
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope failed: %v", err)
	}

	_, ok, err := buildReplayMessage(&sarama.ConsumerMessage{Value: raw}, "marketplace.resolution.events")
	if err == nil {
		t.Fatal("expected error for missing nested payload")
	}
	if ok {
		t.Fatal("expected no replay candidate")
	}
}

func TestBuildReplayMessage_UnknownPayload(t *testing.T) {
	message := &sarama.ConsumerMessage{Value: []byte(`{"foo":"bar"}`)}

	_, ok, err := buildReplayMessage(message, "marketplace.resolution.events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected message to be skipped")
	}
}

func TestCoalesce(t *testing.T) {
	if got := coalesce("", "  ", "x", "y"); got != "x" {
		t.Fatalf("unexpected first non-empty value: %q", got)
	}
	if got := coalesce("", " "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestPublishReplay(t *testing.T) {
	if err := publishReplay(nil, replayMessage{}); err == nil {
		t.Fatal("expected error for nil producer")
	}

	sink := &stubReplaySink{}
	err := publishReplay(sink, replayMessage{topic: "topic", key: "key", value: []byte(`{"x":1}`)})
	if err != nil {
		t.Fatalf("publishReplay failed: %v", err)
	}
	if sink.calls != 1 {
		t.Fatalf("unexpected sink calls: %d", sink.calls)
	}
	if sink.lastMsg == nil || sink.lastMsg.Topic != "topic" {
		t.Fatalf("unexpected last message: %+v", sink.lastMsg)
	}

	sink.sendErr = errors.New("send failed")
	if err := publishReplay(sink, replayMessage{topic: "topic", key: "key", value: []byte(`{"x":1}`)}); err == nil {
		t.Fatal("expected publishReplay error")
	}
}

func TestDrainPartition_DryRun(t *testing.T) {
	offsets := &stubBrokerOffsets{
		partitions: []int32{0},
		ranges:     map[int32]offsetRange{0: {oldest: 0, newest: 2}},
	}
	streams := &stubStreamSource{
		streams: map[int32]partitionStream{
			0: drainedStream(dlqConsumerMessage(t, 0, 0, "offer.accepted", "offer-1")),
		},
	}

	cfg := replayConfig{
		sourceTopic: "marketplace.dlq",
		targetTopic: "marketplace.resolution.events",
		idleTimeout: 20 * time.Millisecond,
	}

	stats, err := drainPartition(context.Background(), cfg, replayDeps{offsets: offsets, streams: streams}, 0, 10)
	if err != nil {
		t.Fatalf("drainPartition failed: %v", err)
	}
	if stats.scanned != 1 || stats.requeued != 1 || stats.skipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(streams.calls) != 1 || streams.calls[0].offset != 0 {
		t.Fatalf("unexpected consume calls: %+v", streams.calls)
	}
}

func TestDrainPartition_Execute(t *testing.T) {
	offsets := &stubBrokerOffsets{ranges: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	streams := &stubStreamSource{
		streams: map[int32]partitionStream{
			0: drainedStream(dlqConsumerMessage(t, 0, 0, "order.created", "offer-2")),
		},
	}
	sink := &stubReplaySink{}

	cfg := replayConfig{
		sourceTopic: "marketplace.dlq",
		targetTopic: "marketplace.resolution.events",
		execute:     true,
		idleTimeout: 20 * time.Millisecond,
	}

	stats, err := drainPartition(context.Background(), cfg, replayDeps{offsets: offsets, streams: streams, sink: sink}, 0, 10)
	if err != nil {
		t.Fatalf("drainPartition failed: %v", err)
	}
	if stats.requeued != 1 {
		t.Fatalf("expected requeued=1, got %+v", stats)
	}
	if sink.calls != 1 {
		t.Fatalf("expected one sink call, got %d", sink.calls)
	}
}

func TestDrainPartition_ErrorBranches(t *testing.T) {
	cfg := replayConfig{
		sourceTopic: "marketplace.dlq",
		targetTopic: "marketplace.resolution.events",
		execute:     true,
		idleTimeout: 20 * time.Millisecond,
	}

	offsetsErr := &stubBrokerOffsets{offsetErr: map[int32]error{0: errors.New("offset")}}
	deps := replayDeps{offsets: offsetsErr, streams: &stubStreamSource{}, sink: &stubReplaySink{}}
	if _, err := drainPartition(context.Background(), cfg, deps, 0, 1); err == nil {
		t.Fatal("expected offset error")
	}

	offsets := &stubBrokerOffsets{ranges: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	deps = replayDeps{offsets: offsets, streams: &stubStreamSource{consumeErr: errors.New("consume")}, sink: &stubReplaySink{}}
	if _, err := drainPartition(context.Background(), cfg, deps, 0, 1); err == nil {
		t.Fatal("expected consume error")
	}

	failingStream := &stubPartitionStream{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	failingStream.errors <- &sarama.ConsumerError{Err: errors.New("consumer boom")}
	close(failingStream.errors)
	deps = replayDeps{
		offsets: offsets,
		streams: &stubStreamSource{streams: map[int32]partitionStream{0: failingStream}},
		sink:    &stubReplaySink{},
	}
	if _, err := drainPartition(context.Background(), cfg, deps, 0, 1); err == nil {
		t.Fatal("expected consumer error branch")
	}
	close(failingStream.messages)

	badPayload := drainedStream(&sarama.ConsumerMessage{
		Partition: 0,
		Offset:    0,
		Value:     []byte(`{"id":"x","payload":"not-an-object"}`),
	})
	deps = replayDeps{
		offsets: offsets,
		streams: &stubStreamSource{streams: map[int32]partitionStream{0: badPayload}},
		sink:    &stubReplaySink{},
	}
	stats, err := drainPartition(context.Background(), cfg, deps, 0, 1)
	if err != nil {
		t.Fatalf("unexpected bad-payload error: %v", err)
	}
	if stats.skipped != 1 {
		t.Fatalf("expected skipped=1, got %+v", stats)
	}

	deps = replayDeps{
		offsets: offsets,
		streams: &stubStreamSource{
			streams: map[int32]partitionStream{
				0: drainedStream(dlqConsumerMessage(t, 0, 0, "offer.accepted", "offer-1")),
			},
		},
		sink: &stubReplaySink{sendErr: errors.New("send fail")},
	}
	if _, err := drainPartition(context.Background(), cfg, deps, 0, 1); err == nil {
		t.Fatal("expected sink send error")
	}
}

func TestDrainPartition_IdleTimeoutAndContext(t *testing.T) {
	offsets := &stubBrokerOffsets{ranges: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	cfg := replayConfig{
		sourceTopic: "marketplace.dlq",
		targetTopic: "marketplace.resolution.events",
		idleTimeout: 10 * time.Millisecond,
	}

	idleStream := &stubPartitionStream{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	deps := replayDeps{
		offsets: offsets,
		streams: &stubStreamSource{streams: map[int32]partitionStream{0: idleStream}},
	}
	stats, err := drainPartition(context.Background(), cfg, deps, 0, 1)
	if err != nil {
		t.Fatalf("unexpected idle-timeout error: %v", err)
	}
	if stats.scanned != 0 {
		t.Fatalf("expected scanned=0, got %+v", stats)
	}
	close(idleStream.messages)
	close(idleStream.errors)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	canceledStream := &stubPartitionStream{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	deps = replayDeps{
		offsets: offsets,
		streams: &stubStreamSource{streams: map[int32]partitionStream{0: canceledStream}},
	}
	if _, err := drainPartition(ctx, cfg, deps, 0, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	close(canceledStream.messages)
	close(canceledStream.errors)
}

func TestRunReplay(t *testing.T) {
	cfg := replayConfig{
		sourceTopic: "marketplace.dlq",
		targetTopic: "marketplace.resolution.events",
		limit:       1,
		idleTimeout: 20 * time.Millisecond,
	}

	if err := runReplay(context.Background(), cfg, replayDeps{}); err == nil {
		t.Fatal("expected missing deps error")
	}

	offsets := &stubBrokerOffsets{
		partitions: []int32{2, 0},
		ranges: map[int32]offsetRange{
			0: {oldest: 0, newest: 2},
			2: {oldest: 0, newest: 2},
		},
	}
	streams := &stubStreamSource{
		streams: map[int32]partitionStream{
			0: drainedStream(dlqConsumerMessage(t, 0, 0, "offer.accepted", "offer-1")),
			2: drainedStream(dlqConsumerMessage(t, 2, 0, "offer.accepted", "offer-2")),
		},
	}

	if err := runReplay(context.Background(), cfg, replayDeps{offsets: offsets, streams: streams}); err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if len(streams.calls) != 1 {
		t.Fatalf("expected one partition due limit=1, got calls=%d", len(streams.calls))
	}
	if streams.calls[0].partition != 0 {
		t.Fatalf("expected first sorted partition=0, got %d", streams.calls[0].partition)
	}

	executeCfg := cfg
	executeCfg.execute = true
	if err := runReplay(context.Background(), executeCfg, replayDeps{offsets: offsets, streams: streams}); err == nil {
		t.Fatal("expected execute mode to require producer")
	}

	empty := &stubBrokerOffsets{partitions: nil}
	if err := runReplay(context.Background(), cfg, replayDeps{offsets: empty, streams: streams}); err != nil {
		t.Fatalf("expected nil error for empty partitions, got %v", err)
	}
}

func TestRun_UsesDependencies(t *testing.T) {
	oldDeps := newReplayDeps
	defer func() { newReplayDeps = oldDeps }()

	cfg := replayConfig{
		sourceTopic: "marketplace.dlq",
		targetTopic: "marketplace.resolution.events",
		limit:       1,
		idleTimeout: 20 * time.Millisecond,
	}

	newReplayDeps = func(replayConfig) (replayDeps, error) {
		return replayDeps{}, errors.New("deps failed")
	}
	if err := run(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "deps failed") {
		t.Fatalf("expected deps error, got %v", err)
	}

	offsets := &stubBrokerOffsets{
		partitions: []int32{0},
		ranges:     map[int32]offsetRange{0: {oldest: 0, newest: 2}},
	}
	streams := &stubStreamSource{
		streams: map[int32]partitionStream{
			0: drainedStream(dlqConsumerMessage(t, 0, 0, "offer.accepted", "offer-1")),
		},
	}
	sink := &stubReplaySink{}

	newReplayDeps = func(replayConfig) (replayDeps, error) {
		return replayDeps{offsets: offsets, streams: streams, sink: sink}, nil
	}
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !offsets.closed || !streams.closed || !sink.closed {
		t.Fatalf("expected all deps to be closed: offsets=%v streams=%v sink=%v",
			offsets.closed, streams.closed, sink.closed)
	}
}

type offsetRange struct {
	oldest int64
	newest int64
}

type stubBrokerOffsets struct {
	partitions    []int32
	partitionsErr error
	ranges        map[int32]offsetRange
	offsetErr     map[int32]error
	closed        bool
}

func (s *stubBrokerOffsets) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if err, ok := s.offsetErr[partition]; ok {
		return 0, err
	}

	r := s.ranges[partition]
	switch marker {
	case sarama.OffsetOldest:
		return r.oldest, nil
	case sarama.OffsetNewest:
		return r.newest, nil
	default:
		return 0, fmt.Errorf("unsupported marker %d", marker)
	}
}

func (s *stubBrokerOffsets) Partitions(string) ([]int32, error) {
	if s.partitionsErr != nil {
		return nil, s.partitionsErr
	}
	return append([]int32(nil), s.partitions...), nil
}

func (s *stubBrokerOffsets) Close() error {
	s.closed = true
	return nil
}

type consumeCall struct {
	partition int32
	offset    int64
}

type stubStreamSource struct {
	streams    map[int32]partitionStream
	consumeErr error
	calls      []consumeCall
	closed     bool
}

func (s *stubStreamSource) ConsumePartition(_ string, partition int32, offset int64) (partitionStream, error) {
	s.calls = append(s.calls, consumeCall{partition: partition, offset: offset})
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	stream, ok := s.streams[partition]
	if !ok {
		return nil, fmt.Errorf("partition %d not configured", partition)
	}
	return stream, nil
}

func (s *stubStreamSource) Close() error {
	s.closed = true
	return nil
}

type stubPartitionStream struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
	closed   bool
}

func (s *stubPartitionStream) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *stubPartitionStream) Errors() <-chan *sarama.ConsumerError     { return s.errors }
func (s *stubPartitionStream) Close() error {
	s.closed = true
	return nil
}

// drainedStream отдаёт заранее записанные сообщения из закрытых каналов.
func drainedStream(messages ...*sarama.ConsumerMessage) *stubPartitionStream {
	msgCh := make(chan *sarama.ConsumerMessage, len(messages))
	errCh := make(chan *sarama.ConsumerError)
	for _, msg := range messages {
		msgCh <- msg
	}
	close(msgCh)
	close(errCh)
	return &stubPartitionStream{messages: msgCh, errors: errCh}
}

type stubReplaySink struct {
	sendErr error
	calls   int
	closed  bool
	lastMsg *sarama.ProducerMessage
}

func (s *stubReplaySink) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	s.calls++
	s.lastMsg = msg
	if s.sendErr != nil {
		return 0, 0, s.sendErr
	}
	return 0, int64(s.calls), nil
}

func (s *stubReplaySink) Close() error {
	s.closed = true
	return nil
}
