// Package config loads qbconnect configuration from the user config
// directory, merging a YAML file over built-in defaults. Credentials are not
// configured here; they come from the secret store and environment via the
// secrets package.
package config
