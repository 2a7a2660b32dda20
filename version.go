package wayfarer

import _ "embed"

// Version is the release of the library and the wayfarer binary.
//
//go:embed VERSION
var Version string
