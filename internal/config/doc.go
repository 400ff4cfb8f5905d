// Package config loads, normalizes, and validates ribosim configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the RIBOSIM_API_BIND environment
// fallback. Carrier capacity, animation timeouts and driver timing all come
// from here so the daemon, the CLI simulator and tests agree on one shape.
package config
