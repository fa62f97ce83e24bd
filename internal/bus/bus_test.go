package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"library-lending/internal/core/config"
)

func TestPartition_StableAndInRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		k := fmt.Sprint(i)
		p := Partition(k, 6)
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 6)
		assert.Equal(t, p, Partition(k, 6))
	}
	assert.Equal(t, 0, Partition("x", 1))
	assert.Equal(t, 0, Partition("x", 0))
}

func TestOwned_CoversEveryPartitionOnce(t *testing.T) {
	seen := map[int]int{}
	n := workers(4, 6)
	for i := 0; i < n; i++ {
		for _, p := range owned(i, n, 6) {
			seen[p]++
		}
	}
	assert.Len(t, seen, 6)
	for p, c := range seen {
		assert.Equal(t, 1, c, "partition %d", p)
	}
	assert.Equal(t, 6, workers(10, 6))
	assert.Equal(t, 1, workers(0, 6))
}

type collector struct {
	mu    sync.Mutex
	byKey map[string][]string
	n     int
}

func newCollector() *collector { return &collector{byKey: map[string][]string{}} }

func (c *collector) handle(_ context.Context, m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[m.Key] = append(c.byKey[m.Key], string(m.Value))
	c.n++
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *collector) values(k string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.byKey[k]...)
}

func sendAll(t *testing.T, p Producer, topic string, keys []string, per int) {
	t.Helper()
	var wg sync.WaitGroup
	for i := 0; i < per; i++ {
		for _, k := range keys {
			wg.Add(1)
			p.Send(context.Background(), Message{Topic: topic, Key: k, Value: []byte(fmt.Sprintf("%s-%03d", k, i))}, func(err error) {
				assert.NoError(t, err)
				wg.Done()
			})
		}
	}
	wg.Wait()
}

func assertOrdered(t *testing.T, c *collector, keys []string, per int) {
	t.Helper()
	for _, k := range keys {
		got := c.values(k)
		require.Len(t, got, per, k)
		for i, v := range got {
			assert.Equal(t, fmt.Sprintf("%s-%03d", k, i), v)
		}
	}
}

func TestMemory_PerKeyOrderAndGroupFanout(t *testing.T) {
	b := NewMemory(6, zap.NewNop())
	keys := []string{"1", "2", "3", "4", "5", "6", "7"}
	sendAll(t, b, "book.events", keys, 20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, c := newCollector(), newCollector()
	go func() { _ = b.Consume(ctx, "book.events", "g1", 3, a.handle) }()
	go func() { _ = b.Consume(ctx, "book.events", "g2", 2, c.handle) }()

	total := len(keys) * 20
	require.Eventually(t, func() bool { return a.count() == total && c.count() == total }, 2*time.Second, 5*time.Millisecond)
	assertOrdered(t, a, keys, 20)
	assertOrdered(t, c, keys, 20)
}

func TestMemory_HandlerErrorDoesNotStopConsumer(t *testing.T) {
	b := NewMemory(2, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	go func() {
		_ = b.Consume(ctx, "t", "g", 1, func(_ context.Context, m Message) error {
			mu.Lock()
			seen = append(seen, string(m.Value))
			mu.Unlock()
			if string(m.Value) == "bad" {
				return errors.New("boom")
			}
			if string(m.Value) == "panic" {
				panic("boom")
			}
			return nil
		})
	}()

	for _, v := range []string{"bad", "panic", "good"} {
		b.Send(ctx, Message{Topic: "t", Key: "k", Value: []byte(v)}, nil)
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"bad", "panic", "good"}, seen)
}

func TestMemory_ConsumeReturnsOnCancelAndClose(t *testing.T) {
	b := NewMemory(2, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Consume(ctx, "t", "g", 2, func(context.Context, Message) error { return nil }) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consume did not return")
	}

	require.NoError(t, b.Close())
	var got error
	b.Send(context.Background(), Message{Topic: "t", Key: "k"}, func(err error) { got = err })
	assert.ErrorIs(t, got, ErrClosed)
}

func newRedisBus(t *testing.T) (*RedisStreams, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	b := NewRedisStreams(rdb, RedisOptions{Partitions: 4, MaxLen: 1000, Block: 20 * time.Millisecond, Consumer: "test"}, zap.NewNop())
	t.Cleanup(func() { _ = b.Close() })
	return b, mr
}

func TestRedisStreams_PartitionedStreams(t *testing.T) {
	b, mr := newRedisBus(t)
	sendAll(t, b, "membership.expired", []string{"42"}, 3)

	s := stream("membership.expired", Partition("42", 4))
	entries, err := mr.Stream(s)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.ElementsMatch(t, []string{"key", "42", "value", "42-000"}, entries[0].Values)
}

func TestRedisStreams_ConsumeOrderedAndAcked(t *testing.T) {
	b, _ := newRedisBus(t)
	keys := []string{"1", "2", "3", "4", "5"}
	sendAll(t, b, "book.events", keys, 10)

	ctx, cancel := context.WithCancel(context.Background())
	c := newCollector()
	done := make(chan error, 1)
	go func() { done <- b.Consume(ctx, "book.events", "book-notification-group", 3, c.handle) }()

	require.Eventually(t, func() bool { return c.count() == 50 }, 3*time.Second, 10*time.Millisecond)
	assertOrdered(t, c, keys, 10)

	for p := 0; p < 4; p++ {
		pending, err := b.rdb.XPending(context.Background(), stream("book.events", p), "book-notification-group").Result()
		require.NoError(t, err)
		assert.Zero(t, pending.Count)
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not return")
	}
}

func TestRedisStreams_ExistingGroupIsReused(t *testing.T) {
	b, _ := newRedisBus(t)
	require.NoError(t, b.rdb.XGroupCreateMkStream(context.Background(), stream("t", 0), "g", "0").Err())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, b.Consume(ctx, "t", "g", 1, func(context.Context, Message) error { return nil }))
}

func TestOpen_Drivers(t *testing.T) {
	b, err := Open(config.Bus{Driver: "memory", Partitions: 3}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, b)

	_, err = Open(config.Bus{Driver: "redis"}, nil, zap.NewNop())
	assert.Error(t, err)

	_, err = Open(config.Bus{Driver: "kafka"}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestRenewWhile_RenewsUntilStopped(t *testing.T) {
	var calls atomic.Int32
	stop := renewWhile(context.Background(), 10*time.Millisecond, func(context.Context) error {
		if calls.Add(1) == 2 {
			return errors.New("lock lost")
		}
		return nil
	}, zap.NewNop())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	stop()
	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}

func TestRenewWhile_ParentCancelStopsRenewal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	stop := renewWhile(ctx, time.Hour, func(context.Context) error {
		calls.Add(1)
		return nil
	}, zap.NewNop())
	cancel()
	stop()
	assert.Zero(t, calls.Load())
}
