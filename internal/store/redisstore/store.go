// Package redisstore shares one registry between processes through Redis.
//
// Key layout, under a configurable prefix:
//
//	<prefix>text:<canonical text>   string, JSON record (claimed with SETNX)
//	<prefix>sel:<0x selector>       set of canonical texts
//	<prefix>texts                   sorted set of canonical texts, score 0
//
// All three are written by one Lua script.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/selector"
)

const DefaultKeyPrefix = "sigreg:"

var _ registry.Store = (*Store)(nil)

type Config struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	PoolSize    int
	DialTimeout time.Duration
	Logger      *zap.Logger
}

type Store struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Addr, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("redis store connected", zap.String("addr", cfg.Addr), zap.String("prefix", prefix))
	return &Store{client: client, prefix: prefix, logger: logger}, nil
}

func (s *Store) textKey(text string) string {
	return s.prefix + "text:" + text
}

func (s *Store) selectorKey(sel selector.Selector) string {
	return s.prefix + "sel:" + sel.Hex()
}

func (s *Store) indexKey() string {
	return s.prefix + "texts"
}

func (s *Store) FindByText(ctx context.Context, text string) (registry.Signature, bool, error) {
	data, err := s.client.Get(ctx, s.textKey(text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return registry.Signature{}, false, nil
	}
	if err != nil {
		return registry.Signature{}, false, fmt.Errorf("redis get failed: %w", err)
	}
	var sig registry.Signature
	if err := json.Unmarshal(data, &sig); err != nil {
		return registry.Signature{}, false, fmt.Errorf("corrupt record for %q: %w", text, err)
	}
	return sig, true, nil
}

func (s *Store) FindBySelector(ctx context.Context, sel selector.Selector) ([]registry.Signature, error) {
	texts, err := s.client.SMembers(ctx, s.selectorKey(sel)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	sort.Strings(texts)
	return s.load(ctx, texts)
}

// insertScript claims the text key and writes both indexes in one atomic
// step, so a record is never visible by text without being listed.
//
// KEYS: text key, selector set, text index. ARGV: record JSON, text.
var insertScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("SADD", KEYS[2], ARGV[2])
redis.call("ZADD", KEYS[3], 0, ARGV[2])
return 1
`)

// InsertUnique runs insertScript. Returns ErrAlreadyExists when the text key
// is already taken.
func (s *Store) InsertUnique(ctx context.Context, sig registry.Signature) (registry.Signature, error) {
	data, err := json.Marshal(sig)
	if err != nil {
		return registry.Signature{}, err
	}

	keys := []string{s.textKey(sig.TextSignature), s.selectorKey(sig.Selector()), s.indexKey()}
	inserted, err := insertScript.Run(ctx, s.client, keys, data, sig.TextSignature).Int()
	if err != nil {
		s.logger.Warn("redis insert failed", zap.String("text_signature", sig.TextSignature), zap.Error(err))
		return registry.Signature{}, fmt.Errorf("redis insert failed: %w", err)
	}
	if inserted == 0 {
		return registry.Signature{}, registry.ErrAlreadyExists
	}
	return sig, nil
}

func (s *Store) List(ctx context.Context, opts registry.ListOptions) ([]registry.Signature, error) {
	start := int64(opts.Offset)
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = start + int64(opts.Limit) - 1
	}
	texts, err := s.client.ZRange(ctx, s.indexKey(), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange failed: %w", err)
	}
	return s.load(ctx, texts)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard failed: %w", err)
	}
	return int(n), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Flush removes every key under the store's prefix. Used by tests.
func (s *Store) Flush(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *Store) load(ctx context.Context, texts []string) ([]registry.Signature, error) {
	out := make([]registry.Signature, 0, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = s.textKey(text)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var sig registry.Signature
		if err := json.Unmarshal([]byte(raw), &sig); err != nil {
			return nil, fmt.Errorf("corrupt record for %q: %w", texts[i], err)
		}
		out = append(out, sig)
	}
	return out, nil
}
