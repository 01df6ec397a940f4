// Package server carries a package-scoped structured logger so hub, client,
// and handler code share one consistently-tagged output stream.
package server

import (
	"os"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stderr).With().Timestamp().Str("component", "server").Logger()

// SetLogger replaces the package logger. Call before serving traffic; the
// "component" field is reapplied so log lines stay attributable regardless of
// the logger handed in.
func SetLogger(l zerolog.Logger) {
	logger = l.With().Str("component", "server").Logger()
}
