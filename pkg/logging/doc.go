// Package logging provides subsystem-scoped logging for qbconnect.
//
// All components log through the Debug/Info/Warn/Error functions with a
// subsystem name so log lines can be filtered per component. The package is
// a thin layer over log/slog; Init installs the handler and level filter.
//
// Secrets policy: token values, client secrets, and authorization codes must
// never be passed to this package. Log lengths, expiry instants, and URLs
// instead.
package logging
