package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
)

// S3Uploader implements Uploader against an S3-compatible endpoint using
// the AWS SDK's standard credential chain (env vars, shared config,
// instance profile). It is a native alternative to CLIUploader for
// deployments that prefer not to shell out.
type S3Uploader struct {
	client *s3.Client
}

// NewS3Uploader resolves credentials/region via the default AWS config
// chain. endpoint may be empty to use AWS's standard endpoints.
func NewS3Uploader(ctx context.Context, region, endpoint string) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &S3Uploader{client: client}, nil
}

// UploadFile puts localPath's content at key remotePath in bucket.
func (u *S3Uploader) UploadFile(ctx context.Context, localPath, remotePath, bucket string) error {
	f, err := os.Open(localPath) // #nosec G304 - caller-controlled local mirror path
	if err != nil {
		return errors.Wrap(err, "open local file")
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(remotePath),
		Body:   f,
	})
	if err != nil {
		return errors.Wrapf(err, "put object %s/%s", bucket, remotePath)
	}
	return nil
}

// UploadFolder walks localDir and uploads every regular file under
// "<bucket>/<relative path>".
func (u *S3Uploader) UploadFolder(ctx context.Context, localDir, bucket string) error {
	return filepath.WalkDir(localDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		key := strings.ReplaceAll(rel, string(filepath.Separator), "/")
		return u.UploadFile(ctx, path, key, bucket)
	})
}
