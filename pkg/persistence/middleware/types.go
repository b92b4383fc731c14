// Package middleware wraps session persistence with data-protection layers.
//
// Store middleware (encryption) sits between the engine and its SessionStore.
// Archive middleware (PII masking) sits between the engine and its Archiver,
// so the durable record never carries the raw values of sensitive fields.
package middleware

import "github.com/aretw0/guidance/pkg/ports"

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// ArchiveMiddleware allows wrapping an Archiver to add behavior.
type ArchiveMiddleware func(ports.Archiver) ports.Archiver

// Chain applies store middlewares in order; the first one is the outermost.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
