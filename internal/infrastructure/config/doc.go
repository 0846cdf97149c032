// Package config provides configuration loading for the Fora miio bridge.
//
// Configuration is loaded from a YAML file, merged over built-in defaults,
// and finally overridden by MIIOBRIDGE_* environment variables. Secrets
// (app token, InfluxDB token) should always come from the environment in
// production deployments.
//
// # Example
//
//	app:
//	  id: "miio-bridge-01"
//	mqtt:
//	  broker:
//	    host: "fora.local"
//	    port: 1883
//	directory:
//	  base_url: "https://fora.local"
//	discovery:
//	  cache_time: 300
//	  token_storage: true
//
// Call Load() once at startup; the returned Config is treated as read-only
// for the lifetime of the process.
package config
