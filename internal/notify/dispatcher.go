// Package notify 消费领域事件并扇出到邮件与在线推送。
package notify

import (
	"context"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"library-lending/internal/bus"
	"library-lending/internal/domain"
	"library-lending/internal/event"
)

type Mailer interface {
	SendOne(ctx context.Context, to, subject, body string)
	SendBulk(ctx context.Context, to []string, subject, body string)
}

type Pusher interface {
	Push(userID int64, text string)
}

// RecipientPager 分页读取 active 用户，page 从 0 开始；不保证快照一致
type RecipientPager interface {
	Page(ctx context.Context, page, size int) ([]domain.User, error)
}

// StorePager 直接走仓储分页
type StorePager struct{ Store domain.Store }

func (p StorePager) Page(ctx context.Context, page, size int) ([]domain.User, error) {
	return p.Store.Repos(ctx).Users.PageActive(page, size)
}

type Options struct {
	PageSize        int
	Concurrency     int
	BookGroup       string
	MembershipGroup string
	// PushConcurrency 每页并发推送数，慢连接不拖住同页其他用户
	PushConcurrency int
}

type Dispatcher struct {
	pager RecipientPager
	mail  Mailer
	push  Pusher
	l     *zap.Logger
	opt   Options
}

func NewDispatcher(pager RecipientPager, mail Mailer, push Pusher, l *zap.Logger, opt Options) *Dispatcher {
	if opt.PageSize < 1 {
		opt.PageSize = 1000
	}
	if opt.Concurrency < 1 {
		opt.Concurrency = 3
	}
	if opt.PushConcurrency < 1 {
		opt.PushConcurrency = 16
	}
	if opt.BookGroup == "" {
		opt.BookGroup = "book-notification-group"
	}
	if opt.MembershipGroup == "" {
		opt.MembershipGroup = "membership-notification-group"
	}
	return &Dispatcher{pager: pager, mail: mail, push: push, l: l, opt: opt}
}

// Run 阻塞消费两个 topic，直到 ctx 取消或某个消费者出错
func (d *Dispatcher) Run(ctx context.Context, c bus.Consumer) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Consume(ctx, domain.TopicBookEvents, d.opt.BookGroup, d.opt.Concurrency, d.HandleBook)
	})
	g.Go(func() error {
		return c.Consume(ctx, domain.TopicMembershipExpired, d.opt.MembershipGroup, d.opt.Concurrency, d.HandleMembership)
	})
	return g.Wait()
}

func (d *Dispatcher) HandleBook(ctx context.Context, m bus.Message) error {
	e, err := event.DecodeBook(m.Value)
	if err != nil {
		return err
	}
	content, ok := BookContent(e)
	if !ok {
		d.l.Debug("unknown book event skipped", zap.String("eventType", string(e.EventType)), zap.Int64("bookId", e.BookID))
		return nil
	}

	total := 0
	for page := 0; ; page++ {
		users, err := d.pager.Page(ctx, page, d.opt.PageSize)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			break
		}
		total += len(users)

		emails := make([]string, 0, len(users))
		for _, u := range users {
			if u.Email != "" {
				emails = append(emails, u.Email)
			}
		}
		d.mail.SendBulk(ctx, emails, content.Subject, content.Body)
		pushes := pool.New().WithMaxGoroutines(d.opt.PushConcurrency)
		for _, u := range users {
			id := u.ID
			pushes.Go(func() { d.push.Push(id, content.Push) })
		}
		pushes.Wait()
	}
	d.l.Info("book event fanned out", zap.String("eventType", string(e.EventType)),
		zap.Int64("bookId", e.BookID), zap.Int("recipients", total))
	return nil
}

func (d *Dispatcher) HandleMembership(ctx context.Context, m bus.Message) error {
	e, err := event.DecodeMembership(m.Value)
	if err != nil {
		return err
	}
	c := MembershipContent(e)
	d.mail.SendOne(ctx, e.Email, c.Subject, c.Body)
	d.l.Info("membership expiry notice queued", zap.Int64("userId", e.UserID))
	return nil
}
