// Package inmemorystore provides a simple, thread-safe, in-memory
// implementation of the graphstore.Store interface. It is suitable for
// development, tests, or any session whose graph does not need to outlive
// the process.
package inmemorystore
