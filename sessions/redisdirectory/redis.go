package redisdirectory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/jsonrpc-sse-go/sessions"
)

// Config for the Redis-backed directory. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all presence keys. ENV: SSE_SESSIONS_KEY_PREFIX
	KeyPrefix string `env:"SSE_SESSIONS_KEY_PREFIX,default=sse:sessions:"`
	// TTL is the presence lease duration. Leases are refreshed on inbound
	// activity; an entry that outlives its lease is treated as gone.
	// ENV: SSE_SESSIONS_TTL
	TTL time.Duration `env:"SSE_SESSIONS_TTL,default=5m"`
	// NodeID identifies this process in presence values. ENV: SSE_NODE_ID
	NodeID string `env:"SSE_NODE_ID,default="`
}

// Directory implements sessions.Directory for multi-node deployments.
// Live stream handles are process-local (an SSE response writer cannot
// cross a process boundary), so the handle map stays in memory; Redis
// carries a presence lease per session so every node can tell an unknown
// session apart from one whose stream is owned by a peer.
type Directory struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	nodeID    string

	mu    sync.RWMutex
	local map[string]sessions.PostHandler
}

var (
	_ sessions.Directory = (*Directory)(nil)
	_ sessions.Refresher = (*Directory)(nil)
)

// New builds a Directory from cfg, verifying Redis connectivity with a ping.
func New(cfg Config) (*Directory, error) {
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "sse:sessions:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}

	cl := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Directory{
		client:    cl,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
		nodeID:    cfg.NodeID,
		local:     make(map[string]sessions.PostHandler),
	}, nil
}

// NewFromEnv builds a Directory using envdecode to populate Config.
func NewFromEnv() (*Directory, error) {
	var cfg Config
	// Use envdecode; defaults are provided via struct tags.
	_ = envdecode.Decode(&cfg)
	return New(cfg)
}

func (d *Directory) Add(ctx context.Context, t sessions.PostHandler) error {
	sessID := t.SessionID()

	d.mu.Lock()
	d.local[sessID] = t
	d.mu.Unlock()

	if err := d.client.Set(ctx, d.key(sessID), d.nodeID, d.ttl).Err(); err != nil {
		d.mu.Lock()
		delete(d.local, sessID)
		d.mu.Unlock()
		return fmt.Errorf("failed to record session presence: %w", err)
	}
	return nil
}

func (d *Directory) Resolve(ctx context.Context, sessionID string) (sessions.PostHandler, error) {
	d.mu.RLock()
	t, ok := d.local[sessionID]
	d.mu.RUnlock()
	if ok {
		return t, nil
	}

	n, err := d.client.Exists(ctx, d.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check session presence: %w", err)
	}
	if n > 0 {
		return nil, sessions.ErrSessionElsewhere
	}
	return nil, sessions.ErrSessionNotFound
}

func (d *Directory) Remove(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	delete(d.local, sessionID)
	d.mu.Unlock()

	if err := d.client.Del(ctx, d.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session presence: %w", err)
	}
	return nil
}

// Refresh extends the session's presence lease. Routers call it on inbound
// activity so long-lived quiet sessions on other nodes still expire.
func (d *Directory) Refresh(ctx context.Context, sessionID string) error {
	ok, err := d.client.Expire(ctx, d.key(sessionID), d.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh session lease: %w", err)
	}
	if !ok {
		return sessions.ErrSessionNotFound
	}
	return nil
}

func (d *Directory) Close() error {
	d.mu.Lock()
	d.local = make(map[string]sessions.PostHandler)
	d.mu.Unlock()
	return d.client.Close()
}

func (d *Directory) key(sessionID string) string {
	return d.keyPrefix + sessionID
}
