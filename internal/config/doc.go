// Package config loads orbit configuration.
//
// Configuration is read, in increasing precedence, from built-in defaults,
// a TOML file (by default <config dir>/config.toml) and ORBIT_-prefixed
// environment variables:
//
//	[log]
//	level = "debug"
//
//	[plugins]
//	dir = "/home/me/.config/orbit/commands"
//	max_parallel_loads = 4
//
//	[sandbox]
//	root = "/home/me"
//	read_only = false
//	memory_limit_mb = 64
//
//	[apps]
//	dirs = ["/usr/share/applications"]
//	cache_ttl = "10m"
//	cache_size = 512
//
// ORBIT_PLUGINS_DIR overrides plugins.dir, ORBIT_LOG_LEVEL overrides log.level,
// and so on.
package config
