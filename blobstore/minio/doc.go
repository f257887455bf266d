// Package minio provides a blobstore.BlobStore implementation using the
// MinIO client.
//
// MinIO is a high-performance, S3-compatible object store. This package
// uses the official MinIO Go client, which also works against other
// S3-compatible systems such as Ceph, SeaweedFS, and Garage, with no AWS
// SDK dependency.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "slabs/")
package minio
