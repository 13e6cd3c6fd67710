// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "survey-data",
//	    s3.WithPrefix("catalogues/"),
//	    s3.WithRegion("eu-west-1"),
//	)
//
// Blob reads issue ranged GET requests, so random row access to a large
// FITS file fetches only the rows it needs. Whole-object reads go through
// the transfer manager's parallel downloader.
package s3
