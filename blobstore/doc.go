// Package blobstore provides the byte sources that tables are read from.
//
// A BlobStore opens named blobs; a Blob is a read-only, sized handle that
// supports context-aware positional reads. Random-access table readers
// adapt a Blob to io.ReaderAt with ReaderAt; streaming readers use
// ReadRange or NewReader.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, memory-mapped
//   - MemoryStore: in-memory blobs for tests and generated tables
//   - CachingStore: block cache in front of another store
//   - s3.Store: Amazon S3 with ranged reads
//   - minio.Store: MinIO and other S3-compatible services
package blobstore
