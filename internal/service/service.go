// Package service 业务用例：借还、馆藏、会员、报表与过期扫描。
// 存储变更都在 Store.WithinTx 内完成，事件在提交之后发布。
package service

import (
	"context"

	"library-lending/internal/domain"
)

// Publisher 由 *event.Publisher 满足；Publish 不阻塞
type Publisher interface {
	Publish(ctx context.Context, e domain.Event)
}

// Evictor 由 *cache.Cache 满足
type Evictor interface {
	Evict(ctx context.Context, keys ...string) error
}

const ReportTopCategoriesKey = "reports:topCategories"

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) {}
