package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prizeboard/internal/competition"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a competition has no cached snapshot
var ErrCacheMiss = errors.New("snapshot not cached")

// ClosingKey is the Redis string key holding a frozen leaderboard as JSON
func ClosingKey(competitionID string) string {
	return fmt.Sprintf("competition:%s:closing", competitionID)
}

// RanksKey is the Redis sorted set key mapping users to their frozen rank
func RanksKey(competitionID string) string {
	return fmt.Sprintf("competition:%s:ranks", competitionID)
}

// TotalsKey is the Redis hash key mapping users to their frozen total score
func TotalsKey(competitionID string) string {
	return fmt.Sprintf("competition:%s:totals", competitionID)
}

// RedisRepository caches frozen leaderboards. Snapshots are immutable, so
// entries are only ever written once per competition.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository creates a new Redis repository. A zero ttl keeps
// snapshots until evicted.
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		client: client,
		ttl:    ttl,
	}
}

// PutSnapshot stores a frozen leaderboard with its rank index
func (r *RedisRepository) PutSnapshot(ctx context.Context, lb competition.Leaderboard) error {
	raw, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	pipe := r.client.TxPipeline()

	ranks := RanksKey(lb.CompetitionID)
	totals := TotalsKey(lb.CompetitionID)
	pipe.Del(ctx, ranks, totals)

	if len(lb.Entries) > 0 {
		members := make([]redis.Z, 0, len(lb.Entries))
		values := make([]interface{}, 0, 2*len(lb.Entries))
		for i, e := range lb.Entries {
			members = append(members, redis.Z{Score: float64(i + 1), Member: e.UserID})
			values = append(values, e.UserID, e.Total)
		}
		pipe.ZAdd(ctx, ranks, members...)
		pipe.HSet(ctx, totals, values...)
	}

	// Written last so readers never see a snapshot without its index
	pipe.Set(ctx, ClosingKey(lb.CompetitionID), raw, r.ttl)
	if r.ttl > 0 {
		pipe.Expire(ctx, ranks, r.ttl)
		pipe.Expire(ctx, totals, r.ttl)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// GetSnapshot retrieves a cached frozen leaderboard
func (r *RedisRepository) GetSnapshot(ctx context.Context, competitionID string) (competition.Leaderboard, error) {
	raw, err := r.client.Get(ctx, ClosingKey(competitionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return competition.Leaderboard{}, ErrCacheMiss
		}
		return competition.Leaderboard{}, err
	}

	var lb competition.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return competition.Leaderboard{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return lb, nil
}

// GetUserRank retrieves a user's rank and total in a cached frozen
// leaderboard. A rank of 0 means the user is not on it.
func (r *RedisRepository) GetUserRank(ctx context.Context, competitionID, userID string) (int, float64, error) {
	exists, err := r.client.Exists(ctx, ClosingKey(competitionID)).Result()
	if err != nil {
		return 0, 0, err
	}
	if exists == 0 {
		return 0, 0, ErrCacheMiss
	}

	pipe := r.client.Pipeline()
	rankCmd := pipe.ZScore(ctx, RanksKey(competitionID), userID)
	totalCmd := pipe.HGet(ctx, TotalsKey(competitionID), userID)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, err
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	total, err := totalCmd.Float64()
	if err != nil {
		return 0, 0, fmt.Errorf("invalid total format: %w", err)
	}
	return int(rank), total, nil
}

// Ping checks if Redis is reachable
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
