package templates

import "embed"

//go:embed *.html
var Templates embed.FS
