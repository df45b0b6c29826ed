// Package config provides the gridmesh server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: validation performed once at load
//   - sanitize.go: masking of secrets before the config is logged
//   - node.go: values derived from the config (node ID, outbound ports)
//
// Configuration is loaded via internal/infra/confloader from a YAML file
// and GRIDMESH_ prefixed environment variables. A verified ServerConfig is
// treated as an immutable snapshot for the lifetime of the node.
package config
