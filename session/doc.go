// Package session houses conversation stores: durable histories keyed by a
// conversation id. A runner configured with a Store prepends the stored
// history to runs started with a conversation id and appends the items the
// run produced once it completes or suspends for approval.
//
// Add additional backends (Redis, Postgres, etc.) in sub-packages without
// changing any calling code; only the wiring layer decides which
// implementation to instantiate.
package session
