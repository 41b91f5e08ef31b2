// Package manager is the public-facing credential lifecycle facade. It
// initializes credentials exactly once per process through the secret
// resolver, gates every protected operation on token validity, and sequences
// the refresh engine or the interactive authorization flow when the token is
// unusable. Successful token mutations are persisted to the settings store
// before the operation returns.
package manager
