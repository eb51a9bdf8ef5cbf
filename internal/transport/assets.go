package transport

import "embed"

// staticAssets is the preview UI bundle: index page and ALiS player, served
// for every HTTP path other than the two WebSocket endpoints.
//
//go:embed assets
var staticAssets embed.FS
