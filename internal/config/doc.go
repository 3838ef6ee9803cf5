// Package config loads, normalizes, and validates videotext configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VIDEOTEXT_USERNAME. The Config type centralizes every knob the batch runner,
// the watch loop, and the CLI need, so remote credentials, pipeline limits,
// and the record store location are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
