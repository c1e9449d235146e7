package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/redis/go-redis/v9"
	"lukechampine.com/blake3"

	"github.com/AnandSundar/go-fincache"
)

// DefaultRedisPrefix namespaces every key the Redis backends write
const DefaultRedisPrefix = "fincache"

// RedisStore is a Redis-backed implementation of fincache.Storage.
// Each cache is one hash whose fields are BLAKE3 digests of the request key;
// a set tracks the cache names.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: DefaultRedisPrefix,
	}
}

func (s *RedisStore) namesKey() string {
	return s.prefix + ":caches"
}

func (s *RedisStore) cacheKey(cache string) string {
	return s.prefix + ":cache:" + cache
}

func field(key string) string {
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Match retrieves a cached response from Redis
func (s *RedisStore) Match(ctx context.Context, cache, key string) (*fincache.CachedResponse, error) {
	data, err := s.client.HGet(ctx, s.cacheKey(cache), field(key)).Bytes()
	if err == redis.Nil {
		return nil, fincache.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var response fincache.CachedResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// Put stores a response in Redis and registers the cache name
func (s *RedisStore) Put(ctx context.Context, cache, key string, response *fincache.CachedResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.namesKey(), cache)
		pipe.HSet(ctx, s.cacheKey(cache), field(key), data)
		return nil
	})
	return err
}

// Keys lists the request keys of one cache, rebuilt from the stored records
func (s *RedisStore) Keys(ctx context.Context, cache string) ([]string, error) {
	values, err := s.client.HVals(ctx, s.cacheKey(cache)).Result()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(values))
	for _, v := range values {
		var response fincache.CachedResponse
		if err := json.Unmarshal([]byte(v), &response); err != nil {
			return nil, err
		}
		keys = append(keys, response.Method+" "+response.URL)
	}
	sort.Strings(keys)

	return keys, nil
}

// Names lists every cache registered in Redis
func (s *RedisStore) Names(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	return names, nil
}

// Drop deletes a cache and unregisters its name
func (s *RedisStore) Drop(ctx context.Context, cache string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.cacheKey(cache))
		pipe.SRem(ctx, s.namesKey(), cache)
		return nil
	})
	return err
}
