package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ChangeChannel is the Redis channel receiving permission change events.
	ChangeChannel = "permissions.changed"
	versionKey    = "smartsprint:permissions:version"
)

// Change kinds.
const (
	ChangeRoleGrants    = "role_grants_replaced"
	ChangeOverrideSet   = "override_set"
	ChangeOverrideClear = "override_cleared"
	ChangeUserRole      = "user_role_changed"
)

// Change describes a committed mutation that invalidates resolved views held
// by other processes.
type Change struct {
	Kind          string    `json:"kind"`
	Version       int64     `json:"version"`
	RoleID        *int64    `json:"role_id,omitempty"`
	UserID        *int64    `json:"user_id,omitempty"`
	PermissionKey string    `json:"permission_key,omitempty"`
	At            time.Time `json:"at"`
}

// Notifier fans out committed changes.
type Notifier interface {
	Notify(ctx context.Context, change Change) error
}

// RedisNotifier bumps a global version counter and publishes the change.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier wraps a Redis client. A nil client yields a no-op notifier.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Notify increments the version and publishes the event on ChangeChannel.
func (n *RedisNotifier) Notify(ctx context.Context, change Change) error {
	if n == nil || n.client == nil {
		return nil
	}
	ver, err := n.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return err
	}
	change.Version = ver
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, ChangeChannel, payload).Err()
}

// Version returns the current change counter, zero when nothing was published yet.
func (n *RedisNotifier) Version(ctx context.Context) (int64, error) {
	if n == nil || n.client == nil {
		return 0, nil
	}
	ver, err := n.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}
