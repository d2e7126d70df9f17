// Package config loads the qagen configuration from an optional YAML file and
// QAGEN_-prefixed environment variables, applies defaults and validates the
// result. Database, LLM, pipeline and admin server settings each have their
// own section; Load fails fast when a required value is missing.
package config
