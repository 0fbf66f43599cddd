package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "underwriter/pkg/platform/audit"
	"underwriter/pkg/platform/audit/store/memory"
)

func decisionEvent(subject string) audit.Event {
	return audit.Event{
		Subject:  subject,
		Action:   string(audit.EventDecisionMade),
		Decision: "accept",
	}
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), decisionEvent("APP-1"))
	require.NoError(t, err)

	events, err := store.ListBySubject(context.Background(), "APP-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventDecisionMade), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.NotEmpty(t, events[0].ID)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), decisionEvent("APP-2")))
	}

	// Close should drain all events
	pub.Close()

	events, err := store.ListBySubject(context.Background(), "APP-2")
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull(t *testing.T) {
	blocking := &blockingStore{release: make(chan struct{})}
	pub := NewPublisher(blocking, WithAsyncBuffer(1))

	// first event is taken by the worker and blocks in Append, second fills the buffer
	require.NoError(t, pub.Emit(context.Background(), decisionEvent("APP-3")))
	require.Eventually(t, func() bool { return blocking.started() }, time.Second, time.Millisecond)
	require.NoError(t, pub.Emit(context.Background(), decisionEvent("APP-3")))

	err := pub.Emit(context.Background(), decisionEvent("APP-3"))
	assert.ErrorIs(t, err, ErrBufferFull)

	close(blocking.release)
	pub.Close()
	assert.Equal(t, 2, blocking.count())
}

func TestPublisher_ConcurrentEmit(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), decisionEvent("APP-4"))
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
	pub.Close()

	events, err := store.ListBySubject(context.Background(), "APP-4")
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), decisionEvent("APP-5")))

	events, err := store.ListBySubject(context.Background(), "APP-5")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
}

func TestPublisher_PreservesExistingFields(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	event := decisionEvent("APP-6")
	event.ID = "evt-1"
	event.Timestamp = customTime
	require.NoError(t, pub.Emit(context.Background(), event))

	events, err := store.ListBySubject(context.Background(), "APP-6")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
	assert.Equal(t, "evt-1", events[0].ID)
}

func TestPublisher_CategoryFromAction(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "standard", Action: string(audit.EventRuleSetReloadFailed)}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "standard", Action: "something_new"}))

	events, err := store.ListBySubject(context.Background(), "standard")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
	assert.Equal(t, audit.CategoryOperations, events[1].Category)
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(4))
	pub.Close()
	pub.Close()

	err := pub.Emit(context.Background(), decisionEvent("APP-7"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublisher_SyncStoreError(t *testing.T) {
	pub := NewPublisher(failingStore{})
	defer pub.Close()

	err := pub.Emit(context.Background(), decisionEvent("APP-8"))
	assert.EqualError(t, err, "store down")
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("store down")
}

type blockingStore struct {
	mu      sync.Mutex
	n       int
	began   bool
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, _ audit.Event) error {
	s.mu.Lock()
	s.began = true
	s.mu.Unlock()
	<-s.release
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	return nil
}

func (s *blockingStore) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.began
}

func (s *blockingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
