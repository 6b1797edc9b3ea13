package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/kava-labs/evm-rpc-middleware/logging"
)

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	// Prefix namespaces every key written by the cache
	Prefix string
}

// RedisCache is an implementation of BlockCache that uses Redis as the caching backend.
// Every block is a redis hash keyed by fingerprint hash, and a sorted set scored
// by block number indexes the hashes so old blocks can be cleared by range.
type RedisCache struct {
	client *redis.Client
	prefix string
	*logging.ServiceLogger
}

var _ BlockCache = (*RedisCache)(nil)

func NewRedisCache(
	cfg *RedisConfig,
	logger *logging.ServiceLogger,
) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		client:        client,
		prefix:        cfg.Prefix,
		ServiceLogger: logger,
	}, nil
}

// Set stores value for fingerprint in the hash of blockNumber and indexes the block
func (rc *RedisCache) Set(
	ctx context.Context,
	blockNumber uint64,
	fingerprint string,
	value []byte,
) error {
	blockKey := BuildBlockKey(rc.prefix, blockNumber)
	field := HashFingerprint(fingerprint)

	rc.Logger.Trace().
		Str("key", blockKey).
		Str("field", field).
		Str("value", string(value)).
		Msg("setting value in redis")

	_, err := rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, blockKey, field, value)
		pipe.ZAdd(ctx, BuildIndexKey(rc.prefix), redis.Z{
			Score:  float64(blockNumber),
			Member: blockKey,
		})

		return nil
	})

	return err
}

// Get gets the value for fingerprint in the hash of blockNumber.
func (rc *RedisCache) Get(
	ctx context.Context,
	blockNumber uint64,
	fingerprint string,
) ([]byte, error) {
	blockKey := BuildBlockKey(rc.prefix, blockNumber)
	field := HashFingerprint(fingerprint)

	rc.Logger.Trace().
		Str("key", blockKey).
		Str("field", field).
		Msg("getting value from redis")

	val, err := rc.client.HGet(ctx, blockKey, field).Bytes()
	if err == redis.Nil {
		rc.Logger.Trace().
			Str("key", blockKey).
			Str("field", field).
			Msgf("value not found in redis")
		return nil, ErrNotFound
	}
	if err != nil {
		rc.Logger.Error().
			Str("key", blockKey).
			Err(err).
			Msg("error during getting value from redis")
		return nil, err
	}

	return val, nil
}

// ClearBefore deletes the hashes of every block strictly below blockNumber
func (rc *RedisCache) ClearBefore(ctx context.Context, blockNumber uint64) error {
	indexKey := BuildIndexKey(rc.prefix)
	// "(" makes the bound exclusive
	maxScore := "(" + strconv.FormatUint(blockNumber, 10)

	blockKeys, err := rc.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: maxScore,
	}).Result()
	if err != nil {
		return fmt.Errorf("error listing cached blocks below %d: %w", blockNumber, err)
	}

	if len(blockKeys) == 0 {
		return nil
	}

	rc.Logger.Trace().
		Uint64("block_number", blockNumber).
		Int("blocks", len(blockKeys)).
		Msg("clearing blocks from redis")

	// only the listed blocks are unindexed, a block written after the listing
	// keeps its index entry and is cleared by the next call
	members := make([]interface{}, len(blockKeys))
	for i, blockKey := range blockKeys {
		members[i] = blockKey
	}

	_, err = rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, blockKeys...)
		pipe.ZRem(ctx, indexKey, members...)

		return nil
	})

	return err
}

func (rc *RedisCache) Healthcheck(ctx context.Context) error {
	rc.Logger.Trace().Msg("redis healthcheck was called")

	// Check if we can connect to Redis
	_, err := rc.client.Ping(ctx).Result()
	if err != nil {
		rc.Logger.Error().
			Err(err).
			Msg("can't ping redis")
		return fmt.Errorf("error connecting to Redis: %v", err)
	}

	rc.Logger.Trace().Msg("redis healthcheck was successful")

	return nil
}

// Close closes the redis client
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
