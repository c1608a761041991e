package input

import (
	"context"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/message"
)

// RedisInput pops messages from a Redis list with BLPOP, one message per
// popped element. Grounded on the go-redis/v9 client usage pattern seen in
// AltairaLabs-PromptKit's RedisStore (runtime/statestore/redis.go).
type RedisInput struct {
	client *redis.Client
	key    string
	block  time.Duration
}

func NewRedisInput(cfg map[string]any) (component.Input, error) {
	addr, _ := cfg["address"].(string)
	if addr == "" {
		addr = "localhost:6379"
	}
	key, _ := cfg["key"].(string)
	if key == "" {
		return nil, ferrors.New(ferrors.KindConfig, "redis input: 'key' is required")
	}
	db, _ := cfg["db"].(int)

	return &RedisInput{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		key:    key,
		block:  5 * time.Second,
	}, nil
}

func (r *RedisInput) Open(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return ferrors.Wrap(ferrors.KindFatalIO, err, "redis input: connecting")
	}
	return nil
}

func (r *RedisInput) Read(ctx context.Context) (*message.Message, error) {
	res, err := r.client.BLPop(ctx, r.block, r.key).Result()
	if err == redis.Nil {
		return nil, nil // no element within the block window; executor retries
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, io.EOF
		}
		return nil, ferrors.Transient(err, "redis input: BLPOP %s", r.key)
	}
	// res is [key, value]
	payload := []byte(res[1])
	tok := message.NewToken(func(message.Disposition, error) {}, message.NackOnAnyFailure)
	return message.New(payload, tok), nil
}

func (r *RedisInput) Ack(context.Context, *message.Message) error         { return nil }
func (r *RedisInput) Nack(context.Context, *message.Message, error) error { return nil }

func (r *RedisInput) Close(context.Context) error { return r.client.Close() }
