// Package secrets resolves named credentials from a layered source: an
// injected secret store first, then environment variables of a derived name.
// Resolution never fails; a missing credential is reported as absent so the
// caller decides whether that is fatal (client id) or fine (realm id before
// the first authorization).
package secrets
