package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, `
mqtt:
  broker: "localhost:1883"
`)
	if cfg.Source != SourceMQTT {
		t.Errorf("source: got %q, want mqtt", cfg.Source)
	}
	if cfg.Window.Capacity != DefaultCapacity {
		t.Errorf("window.capacity: got %d, want %d", cfg.Window.Capacity, DefaultCapacity)
	}
	if cfg.Thresholds.TemperatureMax != DefaultTemperatureMax {
		t.Errorf("temperature_max: got %v", cfg.Thresholds.TemperatureMax)
	}
	if cfg.Thresholds.FlameThreshold != DefaultFlameThreshold {
		t.Errorf("flame_threshold: got %d", cfg.Thresholds.FlameThreshold)
	}
	if cfg.MQTT.Topic != DefaultTopic {
		t.Errorf("mqtt.topic: got %q", cfg.MQTT.Topic)
	}
	if cfg.Firebase.Limit != DefaultCapacity {
		t.Errorf("firebase.limit: got %d, want capacity", cfg.Firebase.Limit)
	}
	if cfg.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("http.addr: got %q", cfg.HTTP.Addr)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log.format: got %q", cfg.Log.Format)
	}
}

func TestLoad_Firebase(t *testing.T) {
	cfg := loadFromString(t, `
source: firebase
window:
  capacity: 50
firebase:
  database_url: "https://demo-default-rtdb.firebaseio.com"
  path: capteurs
  poll_interval: 3s
  auth:
    mode: token
    token_env: FB_TOKEN
`)
	if cfg.Firebase.Limit != 50 {
		t.Errorf("firebase.limit: got %d, want 50", cfg.Firebase.Limit)
	}
	if cfg.Firebase.PollInterval != 3*time.Second {
		t.Errorf("poll_interval: got %v", cfg.Firebase.PollInterval)
	}
	if cfg.Firebase.Path != "capteurs" {
		t.Errorf("path: got %q", cfg.Firebase.Path)
	}

	t.Setenv("FB_TOKEN", "s3cret")
	if got := cfg.Firebase.Auth.Token(); got != "s3cret" {
		t.Errorf("Token(): got %q", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown source", "source: serial\n", "source"},
		{"mqtt without broker", "source: mqtt\n", "mqtt.broker"},
		{"qos 2", "mqtt:\n  broker: b:1883\n  qos: 2\n", "mqtt.qos"},
		{"keep_alive too long", "mqtt:\n  broker: b:1883\n  keep_alive: 19h\n", "mqtt.keep_alive"},
		{"negative keep_alive", "mqtt:\n  broker: b:1883\n  keep_alive: -1s\n", "mqtt.keep_alive"},
		{"firebase without url", "source: firebase\n", "database_url"},
		{"limit below capacity", "source: firebase\nfirebase:\n  database_url: https://x\n  limit: 10\n", "firebase.limit"},
		{"bad auth mode", "source: firebase\nfirebase:\n  database_url: https://x\n  auth:\n    mode: basic\n", "auth.mode"},
		{"bad capacity", "window:\n  capacity: -1\nmqtt:\n  broker: b:1883\n", "window.capacity"},
		{"bad webhook", "mqtt:\n  broker: b:1883\nalerts:\n  webhooks:\n    - type: pagerduty\n", "webhooks[0]"},
		{"bad log format", "mqtt:\n  broker: b:1883\nlog:\n  format: xml\n", "log.format"},
		{"apikey without key_env", "mqtt:\n  broker: b:1883\nhttp:\n  auth:\n    mode: apikey\n", "http.auth.key_env"},
		{"bad api auth mode", "mqtt:\n  broker: b:1883\nhttp:\n  auth:\n    mode: oauth\n", "http.auth.mode"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_APIKey(t *testing.T) {
	t.Setenv("ENVWATCH_TEST_API_KEY", "s3cret")
	cfg, err := Load(writeConfig(t, "mqtt:\n  broker: b:1883\nhttp:\n  auth:\n    mode: apikey\n    key_env: ENVWATCH_TEST_API_KEY\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Auth.Header != DefaultAPIKeyHeader {
		t.Errorf("header: got %q, want default %q", cfg.HTTP.Auth.Header, DefaultAPIKeyHeader)
	}
	if got := cfg.HTTP.Auth.Key(); got != "s3cret" {
		t.Errorf("Key(): got %q", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "secrets.env"), []byte("ENVWATCH_TEST_MQTT_PW=hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte("env_file: secrets.env\nmqtt:\n  broker: b:1883\n  password_env: ENVWATCH_TEST_MQTT_PW\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("ENVWATCH_TEST_MQTT_PW") })

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.MQTT.Password(); got != "hunter2" {
		t.Errorf("Password(): got %q, want hunter2", got)
	}
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	cfg := loadFromString(t, "env_file: absent.env\nmqtt:\n  broker: b:1883\n")
	if cfg.EnvFile != "absent.env" {
		t.Errorf("env_file: got %q", cfg.EnvFile)
	}
}

func TestLogConfig_SlogLevel(t *testing.T) {
	if got := (LogConfig{Level: "debug"}).SlogLevel().String(); got != "DEBUG" {
		t.Errorf("debug: got %s", got)
	}
	if got := (LogConfig{Level: "bogus"}).SlogLevel().String(); got != "INFO" {
		t.Errorf("bogus: got %s", got)
	}
}

func TestWebhookConfig_URL(t *testing.T) {
	t.Setenv("HOOK_URL", "https://hooks.example/x")
	if got := (WebhookConfig{Type: "slack", URLEnv: "HOOK_URL"}).URL(); got != "https://hooks.example/x" {
		t.Errorf("URL(): got %q", got)
	}
	if got := (WebhookConfig{Type: "slack"}).URL(); got != "" {
		t.Errorf("URL() without env: got %q", got)
	}
}

func TestWatch_Reload(t *testing.T) {
	p := writeConfig(t, "mqtt:\n  broker: b:1883\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, p, func(c *Config) { got <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("mqtt:\n  broker: b:1883\nthresholds:\n  temperature_max: 42\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		if c.Thresholds.TemperatureMax != 42 {
			t.Errorf("temperature_max after reload: got %v, want 42", c.Thresholds.TemperatureMax)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("onChange was not called")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
