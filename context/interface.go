/*
MIT License

Copyright (c) 2019 Nicolas JUHEL

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package context

import (
	"context"
)

// FuncWalk is the callback Config[T].Walk invokes per entry; returning
// false stops the iteration early.
type FuncWalk[T comparable] func(key T, val interface{}) bool

// Config[T] is a context.Context that also acts as a concurrent, typed
// key/value store -- the shape server.Pool needs to index servers by
// bind address while still handing callers a cancellable context.
type Config[T comparable] interface {
	context.Context

	// GetContext returns the context.Context this Config wraps, or
	// context.Background if none was given.
	GetContext() context.Context

	Clean()
	Load(key T) (val interface{}, ok bool)
	Store(key T, cfg interface{})
	Delete(key T)

	// Clone returns an independent copy backed by a different map. A nil
	// ctx reuses the context the original Config wraps.
	Clone(ctx context.Context) Config[T]
	Walk(fct FuncWalk[T])

	LoadOrStore(key T, cfg interface{}) (val interface{}, loaded bool)
	LoadAndDelete(key T) (val interface{}, loaded bool)
}

// New returns a Config[T] wrapping ctx, defaulting to context.Background
// when ctx is nil.
func New[T comparable](ctx context.Context) Config[T] {
	if ctx == nil {
		ctx = context.Background()
	}

	return &ccx[T]{
		x: ctx,
	}
}
