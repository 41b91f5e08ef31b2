// Package oauth implements the QuickBooks OAuth2 credential lifecycle: token
// state and validity, refresh-with-retry against the token endpoint, and the
// interactive browser-based authorization flow with its local callback
// listener.
//
// The package distinguishes failure classes through AuthError kinds so the
// lifecycle coordinator can branch without string matching: a permanent
// refresh failure (HTTP 400) demands re-authorization, transient failures are
// retried with exponential backoff, and cancellation is surfaced as its own
// kind.
package oauth
