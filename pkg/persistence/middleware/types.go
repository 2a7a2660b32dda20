// Package middleware wraps a ports.SessionStore to transform what is persisted.
package middleware

import (
	"io"

	"github.com/aretw0/wayfarer/pkg/ports"
)

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies middlewares so the first one is the outermost.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

func closeNext(next ports.SessionStore) error {
	if c, ok := next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
