// Package settings persists the QuickBooks connection record (token pair,
// expiry, realm id). The lifecycle coordinator treats Save as durable on
// return and calls it after every successful token mutation. Two backends are
// provided: a JSON file with owner-only permissions and a single-row SQLite
// table.
package settings
