// Package config loads and watches the goonsradar configuration file
// (config.yaml).
//
// Top-level types:
//   - Config{LogLevel, Feed, Refresh, Aliases, HTTP, Notify}: full config tree
//   - FeedConfig: upstream url, referer, user_agent, timeout, rate_limit, burst
//   - RefreshConfig: polling interval and the cool-down used after a failure
//   - AliasConfig: path of the map alias file and whether to hot-reload it
//   - HTTPConfig: listen address and websocket toggle
//   - NotifyConfig, WebhookConfig: position-change webhooks; URL() resolves
//     the target from an environment variable
//
// Load(path) reads the YAML file, applies defaults (eftarkov.com feed, 10s
// timeout, 5s interval, 60s cool-down, maps.txt, :8080), then validates.
// LoadOrDefault tolerates a missing file.
//
// WatchFile(ctx, path, reload) uses fsnotify on the parent directory and calls
// reload whenever path is written or (re)created. Watch builds on it to
// re-parse the config file; the alias table uses it directly.
package config
