// Package confloader loads configuration with koanf.
//
// Sources, later overriding earlier:
//
//  1. Values already present in the target struct (defaults)
//  2. A YAML configuration file
//  3. Environment variables (GRIDMESH_ prefix)
//  4. An explicit map (flags, tests)
//
// Environment keys use a double underscore between sections and keep
// single underscores inside a key:
//
//	GRIDMESH_NETWORK__PORT_AUTO_INCREMENT=false  ->  network.port_auto_increment
//
// Watcher reports changes to a configuration file so that runtime
// adjustable settings (the log level) can be re-applied.
package confloader
