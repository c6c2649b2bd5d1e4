// Package storage persists file parts produced by the formstream parser.
//
// The parser hands uploads over as temp files; a Storage moves each accepted
// one to its final destination and takes ownership of the temp file in the
// process. Two backends are provided:
//
//   - LocalStorage keeps files on the local filesystem, confined to a base
//     directory to prevent path traversal.
//   - S3Storage uploads to Amazon S3 or any S3-compatible service (MinIO,
//     R2, etc.).
//
// Example:
//
//	store, err := storage.NewLocalStorage("/var/uploads", "/files/")
//	if err != nil {
//	    return err
//	}
//
//	payload, err := formstream.ParseRequest(r, opts)
//	if err != nil {
//	    return err
//	}
//	avatar := payload.Named.File("avatar")
//	obj, err := store.Store(ctx, avatar, "avatars/")
//	if err != nil {
//	    return err
//	}
//	url := store.URL(obj.Path)
package storage
