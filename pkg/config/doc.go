// Package config loads, defaults and validates relay configuration.
//
// # Loading
//
//	cfg, err := config.LoadConfig("relay.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("relay.yaml")
//
// Values are applied in this order, later overriding earlier:
//
//  1. Values from the YAML file
//  2. Defaults for fields left empty (defaults.go)
//  3. RELAY_SECTION_FIELD environment variables
//  4. Validation, which reports every failed rule at once
//
// For example RELAY_GATEWAY_TARGET overrides gateway.target and RELAY_ENV
// selects the path-rewrite environment.
//
// # Example
//
//	mode: server
//	listen:
//	  address: "0.0.0.0:8080"
//	gateway:
//	  target: "https://api.internal"
//	  cache: {ok: 5, error: 5, fatal: 5}
//	server:
//	  endpoint: /api/relay
//	  handshake:
//	    max_skew: 5m
//	    apps:
//	      - {id: web, token: "s3cret"}
//
// Router mode reads an ordered path-rewrite table, either inline or from a
// file:
//
//	mode: router
//	routing:
//	  env: staging
//	  table:
//	    "^/api/github":
//	      target: https://api.github.com
//	      pathRewrite: {"^/api/github": "/users"}
//
// # Singleton
//
// Initialize, GetConfig, SetConfig and ReloadConfig manage one process-wide
// configuration guarded by a read-write lock.
package config
