package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{
		DefaultProfile: "work",
		RemoteURL:      "http://localhost:5001/api",
		UserID:         "u1",
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.RemoteURL != "http://localhost:5001/api" {
		t.Errorf("RemoteURL = %q, want %q", loaded.RemoteURL, "http://localhost:5001/api")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.NotifyCooldownMs != DefaultNotifyCooldownMs {
		t.Errorf("NotifyCooldownMs = %d, want %d", loaded.NotifyCooldownMs, DefaultNotifyCooldownMs)
	}
	if loaded.FetchTimeoutMs != DefaultFetchTimeoutMs {
		t.Errorf("FetchTimeoutMs = %d, want %d", loaded.FetchTimeoutMs, DefaultFetchTimeoutMs)
	}
	if loaded.SyncIntervalMs != DefaultSyncIntervalMs {
		t.Errorf("SyncIntervalMs = %d, want %d", loaded.SyncIntervalMs, DefaultSyncIntervalMs)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
