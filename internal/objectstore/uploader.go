// Package objectstore implements the Storage Uploader contract: push a
// file or directory tree to a named bucket under a path prefix. The
// uploader owns no state and does not retry; failures are reported by the
// underlying child process exit code or SDK error.
package objectstore

import "context"

// Uploader is the Storage Uploader contract of spec §4.B. Two back-ends
// satisfy it: CLIUploader (shells to an external tool, matching the
// "opaque child process" framing) and S3Uploader (native SDK calls).
type Uploader interface {
	// UploadFile transfers a single local file to "<bucket>/<remotePath>".
	UploadFile(ctx context.Context, localPath, remotePath, bucket string) error
	// UploadFolder transfers a directory tree recursively under "<bucket>/".
	UploadFolder(ctx context.Context, localDir, bucket string) error
}
