package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	sessionSetPrefix = "campusconnect:sessions:"
	sessionKeyPrefix = "campusconnect:session:"
)

// SessionIndex tracks the active sessions per username in Redis so a
// suspension can terminate all of a user's sessions immediately.
type SessionIndex struct {
	client *redis.Client
}

// NewSessionIndex creates a session index over an existing Redis client.
func NewSessionIndex(client *redis.Client) *SessionIndex {
	return &SessionIndex{client: client}
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Register adds a session for the user. The per-user set expires with the
// session so abandoned sets do not accumulate.
func (s *SessionIndex) Register(ctx context.Context, username, sessionID string, ttl time.Duration) error {
	setKey := sessionSetPrefix + username
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sessionID, username, ttl)
	pipe.SAdd(ctx, setKey, sessionID)
	pipe.Expire(ctx, setKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	return nil
}

// Active returns the session IDs currently held for the user. Sessions
// whose key already expired are pruned from the set as a side effect.
func (s *SessionIndex) Active(ctx context.Context, username string) ([]string, error) {
	setKey := sessionSetPrefix + username
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var active []string
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, sessionKeyPrefix+id).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check session: %w", err)
		}
		if exists == 0 {
			s.client.SRem(ctx, setKey, id)
			continue
		}
		active = append(active, id)
	}
	return active, nil
}

// Terminate removes every session the user holds and returns how many
// live sessions were killed.
func (s *SessionIndex) Terminate(ctx context.Context, username string) (int, error) {
	setKey := sessionSetPrefix + username
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	killed := 0
	for _, id := range ids {
		deleted, err := s.client.Del(ctx, sessionKeyPrefix+id).Result()
		if err != nil {
			return killed, fmt.Errorf("failed to delete session: %w", err)
		}
		killed += int(deleted)
	}
	if err := s.client.Del(ctx, setKey).Err(); err != nil {
		return killed, fmt.Errorf("failed to delete session set: %w", err)
	}
	return killed, nil
}
