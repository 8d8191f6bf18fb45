// Package config provides configuration loading and validation for
// lvmgate. Configuration comes from a JSON file, with LVMGATE_* environment
// variables overriding individual connection settings, and is held behind
// SafeConfig for thread-safe access.
package config
