// Package config loads, normalizes, and validates backdrop configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// R2_ACCESS_KEY_ID and R2_SECRET_ACCESS_KEY. The Config type centralizes the
// output video profile, the clip storage backend, the cache limits, and the
// fallback asset so the CLI and the background manager read them in one pass.
package config
