package cache

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GetOrLoadJSON 按 JSON 缓存 load 的结果。
// 缓存内容解不出来（结构变更后的旧数据）时删掉并重新回源一次。
func GetOrLoadJSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var out T
	loader := func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	b, err := c.GetOrLoad(ctx, key, ttl, loader)
	if err != nil {
		return out, err
	}
	if err = json.Unmarshal(b, &out); err == nil {
		return out, nil
	}

	if err := c.Evict(ctx, key); err != nil {
		return out, err
	}
	if b, err = c.GetOrLoad(ctx, key, ttl, loader); err != nil {
		return out, err
	}
	var fresh T
	if err := json.Unmarshal(b, &fresh); err != nil {
		return out, errors.Wrapf(err, "decode cached %s", key)
	}
	return fresh, nil
}
