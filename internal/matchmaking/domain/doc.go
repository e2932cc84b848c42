// Package domain holds the matchmaking aggregate types and the pure rules
// governing them: session lifecycle status ordering, participant roles,
// the fixed round template, invite code format, and avatar aliases.
//
// Constructors take injected clock and id-generator functions so callers and
// tests control time and identity. Nothing in this package touches storage.
package domain
