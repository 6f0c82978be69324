// Package publish fans committed transitions and the live display state out
// to Redis so other processes can follow the recognizer.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/ayusman/signbridge/internal/session"
)

// Publisher receives recognition output.
type Publisher interface {
	PublishTransition(ctx context.Context, t session.Transition) error
	PublishDisplay(ctx context.Context, out session.Output) error
	Close() error
}

// Redis publishes transitions on a channel and keeps the latest display
// state under <prefix>display.
type Redis struct {
	client  *backend.Client
	channel string
	prefix  string
}

// Option configures a Redis publisher.
type Option func(*Redis)

// WithChannel sets the pub/sub channel for transitions.
func WithChannel(channel string) Option {
	return func(r *Redis) {
		r.channel = channel
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis creates a publisher connected to address.
func NewRedis(address, password string, db int, opts ...Option) *Redis {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a publisher from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Redis {
	r := &Redis{
		client:  client,
		channel: "signbridge:transitions",
		prefix:  "signbridge:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// DisplayKey returns the key holding the latest display state.
func (r *Redis) DisplayKey() string {
	return r.prefix + "display"
}

// Channel returns the transition channel name.
func (r *Redis) Channel() string {
	return r.channel
}

// PublishTransition publishes t as JSON.
func (r *Redis) PublishTransition(ctx context.Context, t session.Transition) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transition: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish transition: %w", err)
	}
	return nil
}

// PublishDisplay stores the latest display output.
func (r *Redis) PublishDisplay(ctx context.Context, out session.Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal display state: %w", err)
	}
	if err := r.client.Set(ctx, r.DisplayKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store display state: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
