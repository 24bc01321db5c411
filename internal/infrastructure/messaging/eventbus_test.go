package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
)

type busCounts struct {
	mu        sync.Mutex
	published map[string]int
	succeeded int
	failed    int
}

func (c *busCounts) RecordEventPublished(eventType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.published == nil {
		c.published = make(map[string]int)
	}
	c.published[eventType]++
}

func (c *busCounts) RecordEventHandled(_ string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.succeeded++
	} else {
		c.failed++
	}
}

func syncBus() (*InMemoryEventBus, *busCounts) {
	counts := &busCounts{}
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false, Metrics: counts}), counts
}

func TestInMemoryEventBus_Dispatch(t *testing.T) {
	bus, counts := syncBus()
	defer bus.Close()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventRecommendationGenerated, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRecommendationGeneratedEvent(1, 2, "Alto", "rules", "run")))
	require.NoError(t, bus.Publish(shared.NewPipelineStartedEvent("run", 3)))

	assert.Equal(t, []shared.EventType{shared.EventRecommendationGenerated}, typed)
	assert.Equal(t, []shared.EventType{shared.EventRecommendationGenerated, shared.EventPipelineStarted}, all)

	assert.Equal(t, map[string]int{
		string(shared.EventRecommendationGenerated): 1,
		string(shared.EventPipelineStarted):         1,
	}, counts.published)
	assert.Equal(t, 3, counts.succeeded)
	assert.Zero(t, counts.failed)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus, counts := syncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventPipelineStarted, func(shared.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventPipelineStarted, func(shared.Event) error {
		panic("handler bug")
	}))

	assert.NoError(t, bus.Publish(shared.NewPipelineStartedEvent("run", 1)))

	assert.Equal(t, 2, counts.failed)
	assert.Zero(t, counts.succeeded)
}

func TestInMemoryEventBus_Async(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewPipelineStartedEvent("run", i)))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 20
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, bus.Close())
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus, _ := syncBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewPipelineStartedEvent("run", 1)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventPipelineStarted, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.Error(t, bus.SubscribeAll(nil))
}

// ── Redis bus ────────────────────────────────────────────────────────────────

// loopbackClient delivers every published message to its subscriber, like a
// single Redis server shared by two instances.
type loopbackClient struct {
	mu   sync.Mutex
	subs []chan RedisMessage
}

func (c *loopbackClient) Publish(_ context.Context, channel string, message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subs {
		s <- RedisMessage{Channel: channel, Payload: message.(string)}
	}
	return nil
}

func (c *loopbackClient) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan RedisMessage, 16)
	c.subs = append(c.subs, ch)
	return ch, nil
}

func (c *loopbackClient) Close() error { return nil }

func TestRedisEventBus_RelaysBetweenInstances(t *testing.T) {
	client := &loopbackClient{}
	local := InMemoryEventBusConfig{AsyncMode: false}

	worker, err := NewRedisEventBus(RedisEventBusConfig{Client: client, InstanceID: "worker", LocalBusConfig: local})
	require.NoError(t, err)
	server, err := NewRedisEventBus(RedisEventBusConfig{Client: client, InstanceID: "server", LocalBusConfig: local})
	require.NoError(t, err)

	received := make(chan shared.Event, 4)
	require.NoError(t, server.Subscribe(shared.EventRecommendationGenerated, func(e shared.Event) error {
		received <- e
		return nil
	}))
	workerLocal := 0
	require.NoError(t, worker.Subscribe(shared.EventRecommendationGenerated, func(shared.Event) error {
		workerLocal++
		return nil
	}))

	require.NoError(t, worker.Publish(shared.NewRecommendationGeneratedEvent(42, 7, "Medio", "rules", "run-1")))

	select {
	case e := <-received:
		assert.Equal(t, "42", e.AggregateID())
		assert.Equal(t, float64(42), e.Payload()["student_id"])
		assert.Equal(t, "Medio", e.Payload()["risk_level"])
	case <-time.After(2 * time.Second):
		t.Fatal("event was not relayed to the other instance")
	}

	require.NoError(t, worker.Close())
	require.NoError(t, server.Close())

	// the worker sees its own event once, locally, and ignores the echo
	assert.Equal(t, 1, workerLocal)
}

func TestRedisEventBus_RequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}
