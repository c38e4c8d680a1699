// Package config loads lareview's server configuration from layered JSONC
// files, .env files, and environment variables, and resolves the XDG paths
// the server stores its data under.
package config
