// Package scripts embeds the Risor emit scripts shipped with understory.
package scripts

import "embed"

//go:embed *.risor
var FS embed.FS
