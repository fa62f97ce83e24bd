package mail

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu    sync.Mutex
	calls []Message
	fail  func(n int, m Message) bool
}

func (r *recorder) Send(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, m)
	if r.fail != nil && r.fail(len(r.calls), m) {
		return errors.New("smtp 421")
	}
	return nil
}

func addrs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("u%03d@example.com", i)
	}
	return out
}

func TestSendBulk_ChunksAndIsolatesFailures(t *testing.T) {
	r := &recorder{fail: func(n int, _ Message) bool { return n == 2 }}
	s := NewService(r, Inline{}, zap.NewNop(), Options{})

	s.SendBulk(context.Background(), addrs(250), "New Book Added: Dune", "body")

	require.Len(t, r.calls, 3)
	assert.Len(t, r.calls[0].Bcc, 100)
	assert.Len(t, r.calls[1].Bcc, 100)
	assert.Len(t, r.calls[2].Bcc, 50)
	assert.Equal(t, "u200@example.com", r.calls[2].Bcc[0])
	for _, c := range r.calls {
		assert.Empty(t, c.To)
		assert.Equal(t, "New Book Added: Dune", c.Subject)
	}
}

func TestSendBulk_Empty(t *testing.T) {
	r := &recorder{}
	NewService(r, Inline{}, zap.NewNop(), Options{}).SendBulk(context.Background(), nil, "s", "b")
	assert.Empty(t, r.calls)
}

func TestSendOne_GivesUpAfterThreeAttempts(t *testing.T) {
	r := &recorder{fail: func(int, Message) bool { return true }}
	s := NewService(r, Inline{}, zap.NewNop(), Options{RetryDelay: 0})

	s.SendOne(context.Background(), "a@b.c", "subj", "body")

	require.Len(t, r.calls, 3)
	assert.Equal(t, []string{"a@b.c"}, r.calls[0].To)
}

func TestSendOne_StopsOnSuccess(t *testing.T) {
	r := &recorder{fail: func(n int, _ Message) bool { return n == 1 }}
	s := NewService(r, Inline{}, zap.NewNop(), Options{RetryDelay: 0})

	s.SendOne(context.Background(), "a@b.c", "subj", "body")

	assert.Len(t, r.calls, 2)
}

func TestSendOne_CallerCancelDoesNotAbort(t *testing.T) {
	r := &recorder{}
	p := pool.New().WithMaxGoroutines(2)
	s := NewService(r, p, zap.NewNop(), Options{RetryDelay: 0})

	ctx, cancel := context.WithCancel(context.Background())
	s.SendOne(ctx, "a@b.c", "subj", "body")
	cancel()
	p.Wait()

	assert.Len(t, r.calls, 1)
}

func TestChunks(t *testing.T) {
	assert.Nil(t, Chunks(nil, 100))
	assert.Len(t, Chunks(addrs(100), 100), 1)
	assert.Len(t, Chunks(addrs(101), 100), 2)
	c := Chunks(addrs(5), 2)
	assert.Equal(t, [][]string{{"u000@example.com", "u001@example.com"}, {"u002@example.com", "u003@example.com"}, {"u004@example.com"}}, c)
}
