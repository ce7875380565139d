// Package config provides the server settings.
//
// Settings come from three layers, each overriding the previous one:
//   - Built-in defaults (port 10000, 16 rooms, 128 clients, 15 second grace)
//   - A key=value file, server.config by default, parsed with godotenv
//   - TTT_* environment variables, read with envconfig
//
// Configuration Format:
//
//	# server.config
//	PORT=10000
//	MAX_ROOMS=16
//	MAX_CLIENTS=128
//	BIND_ADDRESS=0.0.0.0
//	DISCONNECT_GRACE=15
//	PROBE_INTERVAL=5
//	ADMIN_ADDRESS=127.0.0.1:8080
//
// A missing file or key keeps the default. Out-of-range values are clamped
// after loading: an invalid PORT or BIND_ADDRESS falls back to its default
// and the numeric limits are pinned to the nearest bound.
//
// Usage:
//
//	cfg, err := config.Load(config.DefaultFile)
//	if err != nil {
//		log.Fatal(err)
//	}
//	ln, err := net.Listen("tcp", cfg.ListenAddress())
package config
