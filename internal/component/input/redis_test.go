package input

import "testing"

func TestNewRedisInputRequiresKey(t *testing.T) {
	if _, err := NewRedisInput(map[string]any{}); err == nil {
		t.Fatalf("expected an error when 'key' is missing")
	}
}

func TestNewRedisInputDefaultsAddress(t *testing.T) {
	in, err := NewRedisInput(map[string]any{"key": "queue"})
	if err != nil {
		t.Fatalf("NewRedisInput: %v", err)
	}
	r := in.(*RedisInput)
	if r.key != "queue" {
		t.Fatalf("key = %q, want 'queue'", r.key)
	}
	if r.client == nil {
		t.Fatalf("expected a constructed redis client")
	}
	if got := r.client.Options().Addr; got != "localhost:6379" {
		t.Fatalf("address = %q, want 'localhost:6379'", got)
	}
}
