package service

import (
	"context"
	"math"
	"time"

	"library-lending/internal/core/cache"
	"library-lending/internal/domain"
)

type CategoryShare struct {
	Category   string  `json:"category"`
	Borrows    int64   `json:"borrows"`
	Percentage float64 `json:"percentage"`
}

type ReportService struct {
	store domain.Store
	cache *cache.Cache
	ttl   time.Duration
}

// NewReportService cache 为 nil 时每次直接查库
func NewReportService(store domain.Store, c *cache.Cache, ttl time.Duration) *ReportService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ReportService{store: store, cache: c, ttl: ttl}
}

// TopCategories 各分类借阅占比（保留两位小数），按借阅次数降序
func (s *ReportService) TopCategories(ctx context.Context) ([]CategoryShare, error) {
	if s.cache == nil {
		return s.loadTopCategories(ctx)
	}
	return cache.GetOrLoadJSON(ctx, s.cache, ReportTopCategoriesKey, s.ttl, s.loadTopCategories)
}

func (s *ReportService) loadTopCategories(ctx context.Context) ([]CategoryShare, error) {
	rows, err := s.store.Repos(ctx).Loans.CategoryCounts()
	if err != nil {
		return nil, err
	}
	var total int64
	for _, r := range rows {
		total += r.Count
	}
	if total == 0 {
		return nil, domain.NotFoundf("no borrow history")
	}
	out := make([]CategoryShare, 0, len(rows))
	for _, r := range rows {
		out = append(out, CategoryShare{
			Category:   r.Category,
			Borrows:    r.Count,
			Percentage: math.Round(float64(r.Count)*10000/float64(total)) / 100,
		})
	}
	return out, nil
}
