package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "whoami:pending:"

// Redis keeps pending actions as JSON values that expire after ttl, so an
// abandoned action does not outlive the conversation. A zero ttl keeps
// them forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func key(userID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}

func (r *Redis) Get(ctx context.Context, userID int64) (Action, error) {
	data, err := r.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Action{}, nil
		}
		return Action{}, fmt.Errorf("error getting pending action from redis: %w", err)
	}

	var action Action
	if err := json.Unmarshal(data, &action); err != nil {
		return Action{}, fmt.Errorf("error unmarshaling pending action: %w", err)
	}
	return action, nil
}

func (r *Redis) Set(ctx context.Context, userID int64, action Action) error {
	if action.Kind == None {
		return r.Clear(ctx, userID)
	}
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("error marshaling pending action: %w", err)
	}
	if err := r.client.Set(ctx, key(userID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("error saving pending action to redis: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("error clearing pending action in redis: %w", err)
	}
	return nil
}
