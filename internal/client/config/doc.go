// Package config loads runtime configuration for the vaxtrack client.
//
// Sources & precedence
//
//  1. Built-in defaults (see Defaults).
//  2. Optional config file (JSON or YAML, by extension) selected via -c or -config.
//  3. Environment variables prefixed with VAXTRACK_, e.g. VAXTRACK_CACHE_DSN.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   local cache database file
//	-r string   remote store DSN (PostgreSQL); empty runs against an in-memory store
//	-u string   user id used when no session token is configured
//	-i int      online status check interval (seconds)
//	-s int      periodic sync interval (seconds)
//	-l string   log level
//	-m string   metrics listen address; enables the metrics endpoint
//
// # File schema
//
// Intervals are either duration strings like "3s" or integer nanoseconds:
//
//	{
//	  "cache_dsn": "vaxtrack.db",
//	  "remote_dsn": "postgres://vaxtrack@localhost/vaxtrack",
//	  "online_check_interval": "3s",
//	  "sync_interval": "5m"
//	}
package config
