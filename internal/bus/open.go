package bus

import (
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"library-lending/internal/core/config"
)

// Open 按 bus.driver 选择实现
func Open(c config.Bus, rdb *redis.Client, l *zap.Logger) (Bus, error) {
	switch c.Driver {
	case "", "redis":
		if rdb == nil {
			return nil, errors.New("redis bus requires a redis client")
		}
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = uuid.NewString()
		}
		return NewRedisStreams(rdb, RedisOptions{
			Partitions: c.Partitions,
			MaxLen:     c.MaxLen,
			Block:      c.Block,
			Consumer:   host,
		}, l), nil
	case "servicebus":
		return NewServiceBus(c.ServiceBus.ConnectionString, c.Partitions, l)
	case "memory":
		return NewMemory(c.Partitions, l), nil
	}
	return nil, errors.Errorf("unknown bus driver %q", c.Driver)
}
