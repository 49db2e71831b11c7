// Package requestlog provides the bounded, persisted log of captured
// request/response records.
//
// The Store is the single owner of the record collection. It is distinct
// from operational logging (which uses log/slog for recorder debugging).
//
// # Concurrency
//
// Mutations are sent to one consumer goroutine over a bounded queue and
// applied in arrival order. Insert and ApplyUpdate never block the caller:
// when the queue is full the operation is dropped and counted. Clear and
// SetMaxRequestCount wait until they have been applied. Reads take a
// consistent snapshot under a read lock.
//
// # Persistence
//
// After every mutation the whole collection is encoded with the codec
// package and handed to a Persister, which replaces the previous snapshot
// in one step:
//
//	store := requestlog.New(requestlog.Options{
//	    MaxRequestCount: 100,
//	    Persister:       requestlog.NewFilePersister(path),
//	})
//	defer store.Close()
//
// The persisted collection is loaded lazily on first access. Corrupt or
// unreadable data yields an empty log rather than an error.
package requestlog
