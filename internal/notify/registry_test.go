package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/coursetape/internal/logging"
)

func testKey() Key {
	return Key{Channel: "user:u1", Table: TableLessonProgress, Filter: "user_id=u1"}
}

func TestSubscribeIsIdempotentPerKey(t *testing.T) {
	broker := NewMemoryBroker()
	reg := NewRegistry(broker, logging.Nop())
	ctx := context.Background()

	var got int
	h := func(Event) { got++ }

	t1, err := reg.Subscribe(ctx, testKey(), h)
	require.NoError(t, err)
	t2, err := reg.Subscribe(ctx, testKey(), h)
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Live(), "double mount must produce one live channel")

	err = broker.Publish(ctx, "user:u1", Event{Table: TableLessonProgress, UserID: "u1", Key: "l1", At: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 1, got, "single key must not double-fire")

	// Unmounting one consumer keeps the channel alive.
	t2()
	assert.Equal(t, 1, reg.Live())

	// Final teardown releases it; calling teardowns again is safe.
	t1()
	t1()
	t2()
	assert.Equal(t, 0, reg.Live())
}

func TestDistinctKeysGetDistinctSubscriptions(t *testing.T) {
	broker := NewMemoryBroker()
	reg := NewRegistry(broker, logging.Nop())
	ctx := context.Background()

	_, err := reg.Subscribe(ctx, testKey(), func(Event) {})
	require.NoError(t, err)
	other := Key{Channel: "user:u1", Table: TableCourseProgress, Filter: "user_id=u1"}
	_, err = reg.Subscribe(ctx, other, func(Event) {})
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Live())
}

func TestFilterSuppressesForeignEvents(t *testing.T) {
	broker := NewMemoryBroker()
	reg := NewRegistry(broker, logging.Nop())
	ctx := context.Background()

	var got []string
	_, err := reg.Subscribe(ctx, testKey(), func(ev Event) { got = append(got, ev.Key) })
	require.NoError(t, err)

	_ = broker.Publish(ctx, "user:u1", Event{Table: TableLessonProgress, UserID: "u1", Key: "mine"})
	_ = broker.Publish(ctx, "user:u1", Event{Table: TableLessonProgress, UserID: "u2", Key: "other-user"})
	_ = broker.Publish(ctx, "user:u1", Event{Table: TableCourseProgress, UserID: "u1", Key: "other-table"})

	assert.Equal(t, []string{"mine"}, got)
}

func TestCleanupAllTearsDownEverything(t *testing.T) {
	broker := NewMemoryBroker()
	reg := NewRegistry(broker, logging.Nop())
	ctx := context.Background()

	var got int
	_, err := reg.Subscribe(ctx, testKey(), func(Event) { got++ })
	require.NoError(t, err)

	reg.CleanupAll()
	assert.Equal(t, 0, reg.Live())

	_ = broker.Publish(ctx, "user:u1", Event{Table: TableLessonProgress, UserID: "u1", Key: "l1"})
	assert.Equal(t, 0, got, "handler must not fire after cleanup")
}

func TestResubscribeAfterTeardown(t *testing.T) {
	broker := NewMemoryBroker()
	reg := NewRegistry(broker, logging.Nop())
	ctx := context.Background()

	release, err := reg.Subscribe(ctx, testKey(), func(Event) {})
	require.NoError(t, err)
	release()
	require.Equal(t, 0, reg.Live())

	var got int
	_, err = reg.Subscribe(ctx, testKey(), func(Event) { got++ })
	require.NoError(t, err)

	_ = broker.Publish(ctx, "user:u1", Event{Table: TableLessonProgress, UserID: "u1", Key: "l1"})
	assert.Equal(t, 1, got)
}
