package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"library-lending/internal/domain"
	"library-lending/internal/repo"
	"library-lending/internal/repo/repotest"
	"library-lending/pkg/utils"
)

func init() { utils.HashCost = 4 }

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) kinds() []domain.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind())
	}
	return out
}

type fixture struct {
	db    *gorm.DB
	store *repo.Store
	pub   *recordingPublisher
}

func newFixture(t testing.TB) *fixture {
	db := repotest.NewDB(t)
	return &fixture{db: db, store: repo.NewStore(db), pub: &recordingPublisher{}}
}

func (f *fixture) book(t testing.TB, id int64) *domain.Book {
	t.Helper()
	b, err := repo.NewBookRepo(f.db).FindByID(id)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func (f *fixture) user(t testing.TB, id int64) *domain.User {
	t.Helper()
	u, err := repo.NewUserRepo(f.db).FindByID(id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func (f *fixture) loans(t testing.TB) []domain.LoanRecord {
	t.Helper()
	var out []domain.LoanRecord
	require.NoError(t, f.db.Order("id").Find(&out).Error)
	return out
}
