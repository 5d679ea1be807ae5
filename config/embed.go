// Package config embeds the default client configuration and command grammar.
package config

import _ "embed"

// Default holds the embedded conf.default.yaml.
//
//go:embed conf.default.yaml
var Default []byte

// Grammar holds the embedded default command grammar.
//
//go:embed commands.yaml
var Grammar []byte
