// Package web holds the embedded chat interface assets.
package web

import _ "embed"

// Index is the single-page chat interface served at /.
//
//go:embed index.html
var Index []byte
