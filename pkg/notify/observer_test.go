package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

func TestMulti(t *testing.T) {
	var got []string
	record := func(name string) Observer {
		return ObserverFunc(func(ev Event) { got = append(got, name+":"+ev.Kind.String()) })
	}

	obs := Multi(record("a"), nil, record("b"))
	obs.Notify(Event{Kind: EventBatchStarted})

	assert.Equal(t, []string{"a:batch_started", "b:batch_started"}, got)
	assert.Equal(t, Nop(), Multi(nil, nil))
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogObserver(zerolog.New(&buf))

	obs.Notify(Event{Kind: EventBatchStarted, Batch: 1, TotalBatches: 3, BatchSize: 10})
	obs.Notify(Event{Kind: EventBatchSucceeded, Batch: 1, Result: &vesting.BatchResult{BatchNumber: 1, TransactionHash: "ABC"}})
	obs.Notify(Event{Kind: EventBatchFailed, Batch: 2, Code: vesting.StatusError, Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "Tx in Progress")
	assert.Contains(t, out, "Tx Successful!")
	assert.Contains(t, out, `"txHash":"ABC"`)
	assert.Contains(t, out, "Tx Failed!")
	assert.Contains(t, out, `"error":"boom"`)
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaObserver_Publishes(t *testing.T) {
	w := &fakeWriter{}
	obs := newKafkaObserver(w, zerolog.Nop())

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	obs.Notify(Event{
		Kind:    EventBatchRetrying,
		Time:    now,
		RunID:   "run-1",
		Batch:   2,
		Code:    vesting.StatusOutOfGas,
		GasPlan: vesting.GasPlan{GasLimit: 3_000_000, FeeAmount: sdkmath.NewInt(75000), FeeDenom: "note"},
	})
	obs.Notify(Event{Kind: EventWaiting, RunID: "run-1", Delay: time.Second})

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("run-1"), w.msgs[0].Key)

	var env batchEnvelope
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &env))
	assert.Equal(t, "batch_retrying", env.Event)
	assert.Equal(t, 2, env.Batch)
	assert.Equal(t, "Out Of Gas", env.Status)
	assert.Equal(t, uint64(3_000_000), env.GasLimit)
	assert.Equal(t, "75000note", env.Fee)

	require.NoError(t, obs.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaObserver_FlushesEachEvent(t *testing.T) {
	obs := NewKafkaObserver([]string{"127.0.0.1:9092"}, "vesting-batches", zerolog.Nop())
	t.Cleanup(func() { _ = obs.Close() })

	w, ok := obs.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "vesting-batches", w.Topic)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	// A single event must not wait for the writer's default one second batch window.
	assert.Equal(t, 1, w.BatchSize)
	assert.Positive(t, w.BatchTimeout)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
	assert.False(t, w.Async)
}

func TestKafkaObserver_WriteErrorIsSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	obs := newKafkaObserver(w, zerolog.Nop())

	assert.NotPanics(t, func() {
		obs.Notify(Event{Kind: EventRunCompleted, RunID: "run-1"})
	})
	assert.Empty(t, w.msgs)
}

func TestProgressObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := NewProgressObserver(&buf)

	obs.Notify(Event{Kind: EventRunStarted, Records: 25, Results: []vesting.BatchResult{{Records: 10}}})
	assert.Equal(t, int64(10), obs.Current())

	obs.Notify(Event{Kind: EventBatchStarted, Batch: 2, TotalBatches: 3})
	obs.Notify(Event{Kind: EventBatchSucceeded, Result: &vesting.BatchResult{Records: 10}})
	assert.Equal(t, int64(20), obs.Current())

	obs.Notify(Event{Kind: EventRunCompleted})
	assert.Equal(t, int64(0), obs.Current())
	assert.NotEmpty(t, buf.String())
}
