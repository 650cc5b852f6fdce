package rbac

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisNotifierPublishesVersionedChange(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	sub := client.Subscribe(ctx, ChangeChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	notifier := NewRedisNotifier(client)
	userID := int64(3)
	require.NoError(t, notifier.Notify(ctx, Change{Kind: ChangeOverrideSet, UserID: &userID, PermissionKey: "task.edit"}))
	require.NoError(t, notifier.Notify(ctx, Change{Kind: ChangeOverrideClear, UserID: &userID, PermissionKey: "task.edit"}))

	ver, err := notifier.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ver)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var first Change
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &first))
	assert.Equal(t, ChangeOverrideSet, first.Kind)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, "task.edit", first.PermissionKey)
	assert.WithinDuration(t, time.Now(), first.At, time.Minute)
}

func TestRedisNotifierNilClient(t *testing.T) {
	var n *RedisNotifier
	assert.NoError(t, n.Notify(context.Background(), Change{Kind: ChangeRoleGrants}))
	ver, err := NewRedisNotifier(nil).Version(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ver)
}

func TestServicePublishesThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	notifier := NewRedisNotifier(client)
	svc := NewService(fixture(), ServiceConfig{Notifier: notifier})

	_, err := svc.ReplaceRolePermissions(context.Background(), 11, []int64{1})
	require.NoError(t, err)
	ver, err := notifier.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), ver)
}
