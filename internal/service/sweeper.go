package service

import (
	"context"

	"go.uber.org/zap"

	"library-lending/internal/domain"
	"library-lending/internal/metrics"
)

// Sweeper 停用会员已过期的用户，并为每个人发一条 MEMBERSHIP_EXPIRED
type Sweeper struct {
	store domain.Store
	pub   Publisher
	clock domain.Clock
	l     *zap.Logger
}

func NewSweeper(store domain.Store, pub Publisher, clock domain.Clock, l *zap.Logger) *Sweeper {
	if pub == nil {
		pub = nopPublisher{}
	}
	if clock == nil {
		clock = domain.SystemClock
	}
	return &Sweeper{store: store, pub: pub, clock: clock, l: l}
}

// Sweep 在一个事务里完成停用，提交后再发事件；返回停用人数。
// 已停用的用户不在扫描范围内，重复执行不会重复发事件。
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	today := domain.DateOf(s.clock())
	var expired []*domain.MembershipExpiredEvent
	err := s.store.WithinTx(ctx, func(r domain.Repos) error {
		users, err := r.Users.ListActive()
		if err != nil {
			return err
		}
		for i := range users {
			u := &users[i]
			if !u.MembershipExpired(today) {
				continue
			}
			ok, err := r.Users.DeactivateExpired(u.ID, today)
			if err != nil {
				return err
			}
			// 扫描之后被续期或停用的跳过
			if !ok {
				continue
			}
			u.Active = false
			expired = append(expired, domain.NewMembershipExpiredEvent(u).WithDedupKey(today))
		}
		return nil
	})
	if err != nil {
		s.l.Error("membership sweep failed", zap.Error(err))
		return 0, err
	}

	for _, e := range expired {
		s.pub.Publish(ctx, e)
	}
	metrics.MembershipsExpired.Add(float64(len(expired)))
	s.l.Info("membership sweep done", zap.Time("day", today), zap.Int("deactivated", len(expired)))
	return len(expired), nil
}
