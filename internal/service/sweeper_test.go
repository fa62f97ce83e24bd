package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"library-lending/internal/domain"
	"library-lending/internal/repo/repotest"
)

func TestSweep_DeactivatesOnceAndEmitsOnce(t *testing.T) {
	f := newFixture(t)
	late := repotest.SeedUser(t, f.db, "late@example.com", true, yesterday)
	today := repotest.SeedUser(t, f.db, "today@example.com", true, repotest.Today)
	off := repotest.SeedUser(t, f.db, "off@example.com", false, yesterday)
	s := NewSweeper(f.store, f.pub, repotest.Clock, zap.NewNop())

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, f.user(t, late.ID).Active)
	assert.True(t, f.user(t, today.ID).Active)
	assert.False(t, f.user(t, off.ID).Active)

	require.Len(t, f.pub.events, 1)
	e := f.pub.events[0].(*domain.MembershipExpiredEvent)
	assert.Equal(t, late.ID, e.UserID)
	assert.Equal(t, "late@example.com", e.Email)
	assert.Equal(t, string(domain.MembershipExpired), e.Reason)
	assert.NotEmpty(t, e.DedupKey())

	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.pub.events, 1)
}

func TestSweep_NothingToDo(t *testing.T) {
	f := newFixture(t)
	repotest.SeedUser(t, f.db, "ok@example.com", true, nextMonth)

	n, err := NewSweeper(f.store, f.pub, repotest.Clock, zap.NewNop()).Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.pub.events)
}

// extendAfterScan 在扫描返回后、停用之前给某个用户续期，模拟并发提交的 ExtendMembership
type extendAfterScan struct {
	domain.UserRepository
	id  int64
	end time.Time
}

func (u extendAfterScan) ListActive() ([]domain.User, error) {
	users, err := u.UserRepository.ListActive()
	if err != nil {
		return nil, err
	}
	fresh, err := u.UserRepository.FindByID(u.id)
	if err != nil {
		return nil, err
	}
	fresh.MembershipEndDate = u.end
	return users, u.UserRepository.Update(fresh)
}

type interleavedStore struct {
	domain.Store
	wrap func(domain.UserRepository) domain.UserRepository
}

func (s interleavedStore) WithinTx(ctx context.Context, fn func(r domain.Repos) error) error {
	return s.Store.WithinTx(ctx, func(r domain.Repos) error {
		r.Users = s.wrap(r.Users)
		return fn(r)
	})
}

func TestSweep_KeepsExtensionCommittedAfterScan(t *testing.T) {
	f := newFixture(t)
	renewed := repotest.SeedUser(t, f.db, "renewed@example.com", true, yesterday)
	lapsed := repotest.SeedUser(t, f.db, "lapsed@example.com", true, yesterday)
	store := interleavedStore{Store: f.store, wrap: func(u domain.UserRepository) domain.UserRepository {
		return extendAfterScan{UserRepository: u, id: renewed.ID, end: nextMonth}
	}}

	n, err := NewSweeper(store, f.pub, repotest.Clock, zap.NewNop()).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := f.user(t, renewed.ID)
	assert.True(t, got.Active)
	assert.Equal(t, nextMonth, domain.DateOf(got.MembershipEndDate))
	assert.False(t, f.user(t, lapsed.ID).Active)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, lapsed.ID, f.pub.events[0].(*domain.MembershipExpiredEvent).UserID)
}
