// Package minio provides a blobstore.BlobStore backed by the MinIO client,
// for MinIO and other S3-compatible services (Ceph, Garage, SeaweedFS).
//
// # Basic Usage
//
//	store, err := minio.Dial("localhost:9000", "survey",
//	    minio.WithCredentials("minioadmin", "minioadmin"),
//	    minio.WithPrefix("catalogues/"),
//	)
//
// Locations of the form minio://bucket/key resolve through a Store when
// one is registered with the table loader.
package minio
