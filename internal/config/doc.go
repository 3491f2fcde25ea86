// Package config loads and watches the envwatch configuration file.
//
// Top-level types:
//   - Config{Source, Window, Thresholds, MQTT, Firebase, HTTP, Alerts, Log, EnvFile}
//   - MQTTConfig: broker, topic, client_id, username, password_env, qos,
//     connect_timeout, keep_alive
//   - FirebaseConfig: database_url, path, limit, poll_interval, timeout, auth
//   - AuthConfig: mode (none|token|bearer), token_env; Token() resolves the
//     secret from the environment
//   - AlertsConfig, WebhookConfig: webhook delivery targets, URL() resolves
//     from the environment
//
// Load(path) reads the YAML file, applies defaults (mqtt source, window of
// 100, 5s pull interval, :8080), loads the optional dotenv file, then
// validates enums and ranges.
//
// Watch(ctx, path, onChange) uses fsnotify to reload the file on write and
// calls onChange with the newly parsed Config.
package config
