package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence mirrors "user is connected to node X" for other processes.
type Presence interface {
	Online(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
	Lookup(ctx context.Context, userID string) (nodeID string, online bool, err error)
}

// presence key: im:presence:<user>
// Value: node id, TTL controls the online validity period
func PresenceKey(user string) string { return "im:presence:" + user }

type RedisPresence struct {
	rdb    redis.UniversalClient
	nodeID string
	ttl    time.Duration
}

func NewRedisPresence(rdb redis.UniversalClient, nodeID string, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisPresence{rdb: rdb, nodeID: nodeID, ttl: ttl}
}

// Online sets the user as online and renews the TTL
func (p *RedisPresence) Online(ctx context.Context, user string) error {
	return p.rdb.Set(ctx, PresenceKey(user), p.nodeID, p.ttl).Err()
}

// Offline deletes the key only while it still points at this node, so a
// reconnect on another node is not wiped by a late disconnect here.
func (p *RedisPresence) Offline(ctx context.Context, user string) error {
	return offlineScript.Run(ctx, p.rdb, []string{PresenceKey(user)}, p.nodeID).Err()
}

func (p *RedisPresence) Lookup(ctx context.Context, user string) (string, bool, error) {
	val, err := p.rdb.Get(ctx, PresenceKey(user)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

var offlineScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// NoopPresence is used when no redis is configured.
type NoopPresence struct{}

func (NoopPresence) Online(context.Context, string) error  { return nil }
func (NoopPresence) Offline(context.Context, string) error { return nil }
func (NoopPresence) Lookup(context.Context, string) (string, bool, error) {
	return "", false, nil
}
