package config

import (
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("FORK_CACHE_DIR", "")
	t.Setenv("FORK_REDIS_ENDPOINT", "")

	e := FromEnv()
	if e.ForkCacheDir != defaultForkCacheDir {
		t.Errorf("expected default cache dir %q, got %q", defaultForkCacheDir, e.ForkCacheDir)
	}
	if e.ForkRedisEndpoint != "" {
		t.Errorf("expected empty endpoint by default, got %q", e.ForkRedisEndpoint)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FORK_CACHE_DIR", "/tmp/custom-cache")
	t.Setenv("FORK_REDIS_ENDPOINT", "http://localhost:9999")

	e := FromEnv()
	if e.ForkCacheDir != "/tmp/custom-cache" {
		t.Errorf("expected overridden cache dir, got %q", e.ForkCacheDir)
	}
	if e.ForkRedisEndpoint != "http://localhost:9999" {
		t.Errorf("expected overridden endpoint, got %q", e.ForkRedisEndpoint)
	}
}

func TestProviderCacheKindValidate(t *testing.T) {
	valid := []ProviderCacheKind{ProviderCacheFS, ProviderCacheKV, ProviderCacheNone}
	for _, k := range valid {
		if err := k.Validate(); err != nil {
			t.Errorf("expected %q to be valid, got %v", k, err)
		}
	}

	if err := ProviderCacheKind("bogus").Validate(); err == nil {
		t.Error("expected an error for an unknown provider_cache kind")
	}
}
