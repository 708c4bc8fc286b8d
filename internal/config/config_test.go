package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %s", cfg.ListenAddr)
	}
	if cfg.FetchMaxBytes != 15*1024*1024 {
		t.Errorf("FetchMaxBytes = %d", cfg.FetchMaxBytes)
	}
	if cfg.MirrorEnabled {
		t.Errorf("mirror should default to disabled")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("CACHE_DIR", "/tmp/images")
	t.Setenv("MIRROR_ENABLED", "true")
	t.Setenv("FETCH_RATE", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %s", cfg.ListenAddr)
	}
	if cfg.CacheDir != "/tmp/images" {
		t.Errorf("CacheDir = %s", cfg.CacheDir)
	}
	if !cfg.MirrorEnabled {
		t.Errorf("MirrorEnabled not parsed")
	}
	if cfg.FetchRate != 2.5 {
		t.Errorf("FetchRate = %g", cfg.FetchRate)
	}
}
