// Package data embeds the world documents shipped with the module.
package data

import "embed"

// FS holds items.yaml, locations.yaml, goals.yaml and regions.yaml.
//
//go:embed *.yaml
var FS embed.FS
