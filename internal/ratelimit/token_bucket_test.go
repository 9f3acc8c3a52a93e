package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewRedisTokenBucketValidation(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	if _, err := NewRedisTokenBucket(nil, 10, time.Minute, ""); err == nil {
		t.Fatal("expected error without client")
	}
	if _, err := NewRedisTokenBucket(client, 0, time.Minute, ""); err == nil {
		t.Fatal("expected error for zero capacity")
	}
	if _, err := NewRedisTokenBucket(client, 10, 0, ""); err == nil {
		t.Fatal("expected error for zero window")
	}

	bucket, err := NewRedisTokenBucket(client, 10, time.Minute, " ")
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}
	if bucket.keyPrefix != "pixeledit:ratelimit" {
		t.Fatalf("unexpected default key prefix %q", bucket.keyPrefix)
	}
}

func TestAllowNRejectsCostAboveCapacity(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	bucket, err := NewRedisTokenBucket(client, 3, time.Minute, "test")
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}
	if _, err := bucket.AllowN(context.Background(), "user-1", 4); err == nil {
		t.Fatal("expected error for cost above capacity")
	}
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{int64(3), 3},
		{int(4), 4},
		{float64(5), 5},
		{"6", 6},
	}
	for _, tt := range tests {
		got, err := toInt64(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("toInt64(%v) = %d, %v", tt.in, got, err)
		}
	}
	if _, err := toInt64([]byte("7")); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
