// Package scripts embeds the default rule scripts run by `cellscope check`.
package scripts

import (
	"embed"
	"io/fs"
)

//go:embed rules/*.risor
var rules embed.FS

// Rules returns the default rules, one script per file at the FS root.
func Rules() fs.FS {
	sub, err := fs.Sub(rules, "rules")
	if err != nil {
		panic(err)
	}
	return sub
}
