// Package config handles YAML configuration loading for the streamer binary
// with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation, which is how API credentials are normally supplied. The
// realtime packages never read configuration themselves; the binary converts
// a StreamerConfig into their typed configs.
package config
