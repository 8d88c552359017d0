package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaultsForUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
state_store:
  host: localhost
  port: 5432
  database: ingest
  user: ingest
  password: secret
object_store:
  region: us-east-1
  bucket: ingest-bucket
drive:
  service_account_file: /etc/ingest/drive-sa.json
  root_folder_id: root123
  accepted_extensions: [".pdf"]
vector:
  api_key: sk-test
index:
  vector_store_id: vs_123
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("expected default logging format text, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("expected default logging output stdout, got %q", cfg.Logging.Output)
	}
	if cfg.Extract.Workers != 5 {
		t.Errorf("expected default extract workers 5, got %d", cfg.Extract.Workers)
	}
	if cfg.Extract.OCRTimeout != 300*time.Second {
		t.Errorf("expected default OCR timeout 300s, got %v", cfg.Extract.OCRTimeout)
	}
	if cfg.Index.Workers != 3 {
		t.Errorf("expected default index workers 3, got %d", cfg.Index.Workers)
	}
	if cfg.ObjectStore.MaxRetries != 3 {
		t.Errorf("expected default object store max retries 3, got %d", cfg.ObjectStore.MaxRetries)
	}
}

func TestLoad_ParsesHumanReadableDurations(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
state_store:
  host: localhost
  port: 5432
  database: ingest
  user: ingest
  password: secret
object_store:
  region: us-east-1
  bucket: ingest-bucket
drive:
  service_account_file: /etc/ingest/drive-sa.json
  root_folder_id: root123
  accepted_extensions: [".pdf"]
vector:
  api_key: sk-test
index:
  vector_store_id: vs_123
extract:
  ocr_timeout: 90s
maintenance:
  max_stale_age: 12h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Extract.OCRTimeout != 90*time.Second {
		t.Errorf("expected OCR timeout 90s, got %v", cfg.Extract.OCRTimeout)
	}
	if cfg.Maintenance.MaxStaleAge != 12*time.Hour {
		t.Errorf("expected max stale age 12h, got %v", cfg.Maintenance.MaxStaleAge)
	}
}

func TestLoad_MissingRequiredFieldFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
state_store:
  host: localhost
  port: 5432
  database: ingest
  user: ingest
  password: secret
object_store:
  region: us-east-1
  bucket: ingest-bucket
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing drive/vector/index config, got nil")
	}
}

func TestSaveConfig_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.StateStore.Host = "localhost"
	cfg.StateStore.Port = 5432
	cfg.StateStore.Database = "ingest"
	cfg.StateStore.User = "ingest"
	cfg.StateStore.Password = "secret"
	cfg.ObjectStore.Region = "us-east-1"
	cfg.ObjectStore.Bucket = "ingest-bucket"
	cfg.Drive.ServiceAccountFile = "/etc/ingest/drive-sa.json"
	cfg.Drive.RootFolderID = "root123"
	cfg.Drive.AcceptedExtensions = []string{".pdf"}
	cfg.Vector.APIKey = "sk-test"
	cfg.Index.VectorStoreID = "vs_123"

	path := filepath.Join(dir, "out.yaml")
	if err := SaveConfig(&cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	if loaded.Index.VectorStoreID != "vs_123" {
		t.Errorf("expected vector_store_id to round-trip, got %q", loaded.Index.VectorStoreID)
	}
}

func TestDefaultConfigExists_FalseWhenNoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if DefaultConfigExists() {
		t.Fatal("expected no default config file to exist in a fresh temp dir")
	}
}
