// Package download streams HTTP response bodies to a file or a blob bucket
// with progress reporting, length and checksum validation.
//
// # File Download
//
// [Handle] writes the response body to destPath, creating missing parent
// directories. The destination is removed on any failure:
//
//	err := download.Handle(ctx, resp, "/tmp/file.bin", logger,
//		download.WithProgress(func(done, total int64) { ... }),
//	)
//
// # Bucket Download
//
// [ToBucket] streams into a [gocloud.dev/blob.Bucket] object. An aborted
// write leaves no object behind.
//
// Most callers should use the higher-level
// [github.com/adamwoolhether/httpchain/client] package, which dispatches the
// request and invokes these functions internally.
package download
