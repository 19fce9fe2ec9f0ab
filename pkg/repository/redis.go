package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/CesarCrz/cEatssFB/pkg/config"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	redisValuesKey = "ceats:tree:values"
	redisIndexKey  = "ceats:tree:index"
)

// RedisStore flattens the tree into leaf paths: values live in a hash and
// the paths in a sorted set so a subtree is one lexicographic range. Every
// write publishes its path so subscribers can re-run their queries.
type RedisStore struct {
	client *redis.Client
	config *config.RedisConfig
	logger *zap.Logger
}

func NewRedisStore(cfg *config.RedisConfig, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
		logger: logger,
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Get(ctx context.Context, path string, dest any) (bool, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return false, err
	}
	node, err := r.loadTree(ctx, strings.Join(segs, "/"))
	if err != nil {
		return false, err
	}
	if node == nil {
		return false, nil
	}
	if err := decodeInto(node, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisStore) Set(ctx context.Context, path string, value any) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	base := strings.Join(segs, "/")

	normalized, err := normalize(value)
	if err != nil {
		return err
	}
	leaves := make(map[string]string)
	if err := flatten(base, toTree(normalized), leaves); err != nil {
		return fmt.Errorf("failed to flatten value: %w", err)
	}

	stale, err := r.leafPaths(ctx, base)
	if err != nil {
		return err
	}
	// A scalar stored at an ancestor would shadow the new subtree.
	for i := 1; i < len(segs); i++ {
		stale = append(stale, strings.Join(segs[:i], "/"))
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			members := make([]interface{}, len(stale))
			for i, p := range stale {
				members[i] = p
			}
			pipe.HDel(ctx, redisValuesKey, stale...)
			pipe.ZRem(ctx, redisIndexKey, members...)
		}
		if len(leaves) > 0 {
			values := make(map[string]interface{}, len(leaves))
			members := make([]*redis.Z, 0, len(leaves))
			for p, v := range leaves {
				values[p] = v
				members = append(members, &redis.Z{Score: 0, Member: p})
			}
			pipe.HSet(ctx, redisValuesKey, values)
			pipe.ZAdd(ctx, redisIndexKey, members...)
		}
		pipe.Publish(ctx, r.config.Channel, base)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", base, err)
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context, q Query) (Children, error) {
	segs, err := SplitPath(q.Path)
	if err != nil {
		return nil, err
	}
	node, err := r.loadTree(ctx, strings.Join(segs, "/"))
	if err != nil {
		return nil, err
	}
	return matchChildren(node, q)
}

func (r *RedisStore) Subscribe(ctx context.Context, q Query, onSnapshot func(Children), onError func(error)) (Subscription, error) {
	segs, err := SplitPath(q.Path)
	if err != nil {
		return nil, err
	}

	pubsub := r.client.Subscribe(ctx, r.config.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &redisSubscription{pubsub: pubsub, cancel: cancel}

	emit := func() {
		children, err := r.List(subCtx, q)
		if err != nil {
			if subCtx.Err() == nil && onError != nil {
				onError(err)
			}
			return
		}
		if subCtx.Err() == nil {
			onSnapshot(children)
		}
	}

	go func() {
		emit()
		for msg := range pubsub.Channel() {
			written, err := SplitPath(msg.Payload)
			if err != nil {
				r.logger.Warn("Ignoring change notification", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			if related(written, segs) {
				emit()
			}
		}
	}()

	return sub, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// leafPaths returns the stored leaf paths at or below base.
func (r *RedisStore) leafPaths(ctx context.Context, base string) ([]string, error) {
	by := &redis.ZRangeBy{Min: "-", Max: "+"}
	if base != "" {
		by = &redis.ZRangeBy{Min: "[" + base + "/", Max: "[" + base + "/\xff"}
	}
	paths, err := r.client.ZRangeByLex(ctx, redisIndexKey, by).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan %q: %w", base, err)
	}
	if base != "" {
		paths = append(paths, base)
	}
	return paths, nil
}

// loadTree returns the tree-form value at base, or nil.
func (r *RedisStore) loadTree(ctx context.Context, base string) (any, error) {
	paths, err := r.leafPaths(ctx, base)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}
	values, err := r.client.HMGet(ctx, redisValuesKey, paths...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", base, err)
	}
	leaves := make(map[string]string, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			leaves[paths[i]] = s
		}
	}
	if len(leaves) == 0 {
		return nil, nil
	}
	return unflatten(base, leaves)
}

type redisSubscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

func (s *redisSubscription) Close() {
	s.cancel()
	s.pubsub.Close()
}
