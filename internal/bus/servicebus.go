package bus

import (
	"context"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ServiceBus 以 topic/subscription 实现，SessionID 即消息 key：
// 一个 session 同一时刻只被一个接收者锁定，同 key 顺序由 broker 保证。
// 订阅需开启 requiresSession，subscription 名与 group 相同。
type ServiceBus struct {
	client *azservicebus.Client
	l      *zap.Logger
	out    *sendQueue

	mu      sync.Mutex
	senders map[string]*azservicebus.Sender

	idle        time.Duration // 无可用 session 时的等待
	sessionIdle time.Duration // session 内无新消息多久后释放
	lockRenew   time.Duration // 处理期间续 session 锁的间隔，需小于订阅的 lock duration
}

func NewServiceBus(connStr string, partitions int, l *zap.Logger) (*ServiceBus, error) {
	client, err := azservicebus.NewClientFromConnectionString(connStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "servicebus client")
	}
	if partitions < 1 {
		partitions = 1
	}
	s := &ServiceBus{
		client:      client,
		l:           l,
		senders:     map[string]*azservicebus.Sender{},
		idle:        2 * time.Second,
		sessionIdle: 5 * time.Second,
		lockRenew:   20 * time.Second,
	}
	s.out = newSendQueue(partitions, 1024, s.send)
	return s, nil
}

func (s *ServiceBus) sender(topic string) (*azservicebus.Sender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snd, ok := s.senders[topic]; ok {
		return snd, nil
	}
	snd, err := s.client.NewSender(topic, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "sender for %s", topic)
	}
	s.senders[topic] = snd
	return snd, nil
}

func (s *ServiceBus) send(ctx context.Context, m Message) error {
	snd, err := s.sender(m.Topic)
	if err != nil {
		return err
	}
	key := m.Key
	return errors.Wrap(snd.SendMessage(ctx, &azservicebus.Message{
		Body:        m.Value,
		SessionID:   &key,
		ContentType: strPtr("application/json"),
	}, nil), "servicebus send")
}

func (s *ServiceBus) Send(ctx context.Context, m Message, done func(error)) {
	s.out.push(ctx, m, done)
}

func (s *ServiceBus) Close() error {
	s.out.close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.mu.Lock()
	for _, snd := range s.senders {
		_ = snd.Close(ctx)
	}
	s.mu.Unlock()
	return s.client.Close(ctx)
}

// Consume 启动 concurrency 个 session 接收者
func (s *ServiceBus) Consume(ctx context.Context, topic, group string, concurrency int, h Handler) error {
	if concurrency < 1 {
		concurrency = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for ctx.Err() == nil {
				rcv, err := s.client.AcceptNextSessionForSubscription(ctx, topic, group, nil)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					var sbErr *azservicebus.Error
					if !errors.As(err, &sbErr) || sbErr.Code != azservicebus.CodeTimeout {
						s.l.Warn("accept session failed", zap.String("topic", topic), zap.String("group", group), zap.Error(err))
					}
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(s.idle):
					}
					continue
				}
				s.drain(ctx, rcv, topic, group, h)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *ServiceBus) drain(ctx context.Context, rcv *azservicebus.SessionReceiver, topic, group string, h Handler) {
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := rcv.Close(cctx); err != nil {
			s.l.Warn("close session failed", zap.String("session", rcv.SessionID()), zap.Error(err))
		}
	}()
	for {
		rctx, cancel := context.WithTimeout(ctx, s.sessionIdle)
		msgs, err := rcv.ReceiveMessages(rctx, 10, nil)
		cancel()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
				s.l.Warn("receive failed", zap.String("session", rcv.SessionID()), zap.Error(err))
			}
			return
		}
		if len(msgs) == 0 {
			return
		}
		for _, rm := range msgs {
			stop := renewWhile(ctx, s.lockRenew, func(ctx context.Context) error {
				return rcv.RenewSessionLock(ctx, nil)
			}, s.l.With(zap.String("session", rcv.SessionID())))
			dispatch(ctx, s.l, group, h, Message{Topic: topic, Key: rcv.SessionID(), Value: rm.Body})
			stop()
			if err := rcv.CompleteMessage(context.WithoutCancel(ctx), rm, nil); err != nil {
				s.l.Warn("complete failed", zap.String("session", rcv.SessionID()), zap.String("id", rm.MessageID), zap.Error(err))
			}
		}
	}
}

// renewWhile 每隔 every 调一次 renew，直到 stop 返回；stop 之后不会再调用
func renewWhile(ctx context.Context, every time.Duration, renew func(context.Context) error, l *zap.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := renew(ctx); err != nil && ctx.Err() == nil {
					l.Warn("renew session lock failed", zap.Error(err))
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func strPtr(s string) *string { return &s }
