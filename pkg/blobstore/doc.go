// Package blobstore provides per-account blob persistence for OAuth client
// secrets, token files, and resume attachments.
//
// The Store interface abstracts the backing medium. Two implementations are
// provided: Local keeps blobs on the filesystem (the default for single-node
// deployments), S3 keeps them in an S3-compatible bucket for deployments
// without persistent disks.
//
// Keys are forward-slash separated paths scoped per account owner, e.g.
// "users/42/token.json". Key layout is owned by the callers; the store treats
// keys as opaque.
//
// Usage:
//
//	store, err := blobstore.NewLocal(blobstore.LocalConfig{Dir: "./data"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = store.Put(ctx, "users/42/token.json", bytes.NewReader(tokenJSON))
//
//	rc, err := store.Get(ctx, "users/42/token.json")
//	if errors.Is(err, blobstore.ErrNotFound) {
//		// no token persisted yet
//	}
package blobstore
