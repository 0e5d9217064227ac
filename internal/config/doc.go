// Package config loads kubedbg settings by layering three sources: built-in
// defaults, the user file at ~/.config/kubedbg/config.yaml, and the project
// file at ./.kubedbg/config.yaml. Later layers override earlier ones field by
// field; command-line flags override everything and are applied in cmd.
package config
