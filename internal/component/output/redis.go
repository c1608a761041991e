package output

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/message"
)

// RedisOutput pushes each message's payload onto a Redis list with RPUSH,
// the producer side of RedisInput's BLPOP consumer.
type RedisOutput struct {
	client *redis.Client
	key    string
}

func NewRedisOutput(cfg map[string]any) (component.Output, error) {
	addr, _ := cfg["address"].(string)
	if addr == "" {
		addr = "localhost:6379"
	}
	key, _ := cfg["key"].(string)
	if key == "" {
		return nil, ferrors.New(ferrors.KindConfig, "redis output: 'key' is required")
	}
	db, _ := cfg["db"].(int)
	return &RedisOutput{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		key:    key,
	}, nil
}

func (o *RedisOutput) Open(ctx context.Context) error {
	if err := o.client.Ping(ctx).Err(); err != nil {
		return ferrors.Wrap(ferrors.KindFatalIO, err, "redis output: connecting")
	}
	return nil
}

func (o *RedisOutput) Write(ctx context.Context, m *message.Message) error {
	if err := o.client.RPush(ctx, o.key, m.Bytes).Err(); err != nil {
		return ferrors.Transient(err, "redis output: RPUSH %s", o.key)
	}
	return nil
}

func (o *RedisOutput) WriteBatch(ctx context.Context, ms []*message.Message) error {
	pipe := o.client.Pipeline()
	for _, m := range ms {
		pipe.RPush(ctx, o.key, m.Bytes)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return ferrors.Transient(err, "redis output: pipelined RPUSH %s", o.key)
	}
	return nil
}

func (o *RedisOutput) Batch() component.BatchPolicy { return component.BatchPolicy{Size: 100} }

func (o *RedisOutput) Flush(context.Context) error { return nil }

func (o *RedisOutput) Close(context.Context) error { return o.client.Close() }
