package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

// The token stores below persist the API client's auth token across
// restarts. Load returns "" when no token was saved.

// MemoryTokens keeps the token in process memory only
type MemoryTokens struct {
	mu    sync.Mutex
	token string
}

// NewMemoryTokens creates an empty in-memory token store
func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{}
}

func (m *MemoryTokens) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryTokens) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokens) Clear() error {
	return m.Save("")
}

// FileTokens persists the token in a small JSON file
type FileTokens struct {
	path string
}

type tokenFile struct {
	Token string `json:"token"`
}

// NewFileTokens stores the token at path; parent directories are created on
// first Save
func NewFileTokens(path string) *FileTokens {
	return &FileTokens{path: path}
}

func (f *FileTokens) Load() (string, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	return tf.Token, nil
}

func (f *FileTokens) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := json.Marshal(tokenFile{Token: token})
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, b, 0o600)
}

func (f *FileTokens) Clear() error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RedisTokens persists the token under a single Redis key
type RedisTokens struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

// NewRedisTokens stores the token under "<prefix>:token:<name>"
func NewRedisTokens(client *redis.Client, name string) *RedisTokens {
	return &RedisTokens{
		client: client,
		key:    DefaultRedisPrefix + ":token:" + name,
		ctx:    context.Background(),
	}
}

func (r *RedisTokens) Load() (string, error) {
	token, err := r.client.Get(r.ctx, r.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return token, err
}

func (r *RedisTokens) Save(token string) error {
	return r.client.Set(r.ctx, r.key, token, 0).Err()
}

func (r *RedisTokens) Clear() error {
	return r.client.Del(r.ctx, r.key).Err()
}
