package mirrorcfg

import "github.com/cockroachdb/errors"

// ErrBucketRequired is returned when --upload is set without a bucket.
var ErrBucketRequired = errors.New("bucket is required when upload is enabled")
