package output

import "testing"

func TestNewRedisOutputRequiresKey(t *testing.T) {
	if _, err := NewRedisOutput(map[string]any{}); err == nil {
		t.Fatalf("expected an error when 'key' is missing")
	}
}

func TestNewRedisOutputDefaultsAddressAndSetsBatchSize(t *testing.T) {
	out, err := NewRedisOutput(map[string]any{"key": "results"})
	if err != nil {
		t.Fatalf("NewRedisOutput: %v", err)
	}
	r := out.(*RedisOutput)
	if r.key != "results" {
		t.Fatalf("key = %q, want 'results'", r.key)
	}
	if r.client == nil {
		t.Fatalf("expected a constructed redis client")
	}
	if got := r.client.Options().Addr; got != "localhost:6379" {
		t.Fatalf("address = %q, want 'localhost:6379'", got)
	}
	if r.Batch().Size != 100 {
		t.Fatalf("Batch().Size = %d, want 100", r.Batch().Size)
	}
}
