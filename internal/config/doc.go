// Package config provides configuration management for the msgsrv server.
//
// The configuration is a YAML file. Every field has a default, so an empty
// or missing file is valid.
//
// # Configuration File Location
//
// Without an explicit --config flag the file is looked up in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/msgsrv/config.yaml or $HOME/.config/msgsrv/config.yaml
//   - macOS: $HOME/.config/msgsrv/config.yaml
//   - Windows: %LOCALAPPDATA%\msgsrv\config.yaml
//
// # Example
//
//	address: "0.0.0.0:8080"
//	pool_size: 15
//	poll_interval: 100ms
//	read_buffer_size: 512
//	framing: raw
//	idle_timeout: 0s
//	drain_timeout: 5s
//	log_level: info
//	websocket:
//	  address: "0.0.0.0:8081"
//	  path: /ws
//	advertise:
//	  enabled: true
//
// # Usage Example
//
//	cfg, err := config.Load("/etc/msgsrv/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.New(cfg)
package config
