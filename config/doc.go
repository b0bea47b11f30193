// Package config loads the service configuration from defaults, an
// optional YAML file, dotenv files and the process environment.
package config
