// Package config loads the watcher configuration.
//
// The file is YAML; a JSON config.json from older installs parses unchanged
// because JSON is a subset of YAML. ${VAR} references are expanded when the
// file is read and %VAR% references in lockfile paths are expanded on use.
package config
