// Package s3 provides an Amazon S3 implementation of
// blobstore.BlobStore.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "slabs/")
//
// # Features
//
//   - Range reads, so restores fetch only the sections they need
//   - Multipart uploads with CRC32C checksums for large snapshots
//   - Automatic pagination for listing
//   - Configurable key prefix for multi-tenant isolation
//
// # Concurrent Writers
//
// S3 alone cannot commit a manifest atomically. DDBCommitStore layers
// DynamoDB conditional writes over the store so multiple writers can
// safely race on the CURRENT pointer; the loser gets
// ErrConcurrentModification and retries against the new manifest.
package s3
