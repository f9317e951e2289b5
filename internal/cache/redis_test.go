package cache

import (
	"testing"

	"crashgame/internal/config"
)

func TestNewOptions(t *testing.T) {
	cfg := config.RedisConfig{Addr: "cache:6380", Password: "secret", DB: 3}
	opts := newOptions(cfg)

	if opts.Addr != cfg.Addr || opts.Password != cfg.Password || opts.DB != cfg.DB {
		t.Errorf("newOptions() = %+v, want values from %+v", opts, cfg)
	}
	if opts.PoolSize != 100 || opts.MaxRetries != 3 {
		t.Errorf("pool settings = %d/%d", opts.PoolSize, opts.MaxRetries)
	}
}

func TestNew_Unreachable(t *testing.T) {
	svc, err := New(config.RedisConfig{Addr: "127.0.0.1:1"}, nil)
	if err == nil {
		svc.Close()
		t.Fatal("New() against a closed port should fail")
	}
	if svc != nil {
		t.Error("New() should not return a service on failure")
	}
}

func TestNew_Available(t *testing.T) {
	svc, err := New(config.RedisConfig{Addr: "localhost:6379", DB: 15}, nil)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer svc.Close()

	if stats := svc.Health(); stats["status"] != "up" {
		t.Errorf("Health() = %v", stats)
	}
}

func TestService_Interface(t *testing.T) {
	var _ Service = (*service)(nil)
}
