package objectstore

import (
	"context"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

// CLIUploader delegates uploads to an external command, the same
// tool-invocation contract the original mirror used for object storage:
// the uploader owns no state, and success or failure is observed purely
// through the child process's exit code.
//
// FileTemplate and FolderTemplate are word lists with placeholders {src},
// {dst} and {bucket}; e.g. "s3cmd put {src} s3://{bucket}/{dst} --acl-public".
type CLIUploader struct {
	FileTemplate   []string
	FolderTemplate []string
}

// NewCLIUploader builds a CLIUploader with the conventional s3cmd-style
// command lines as defaults.
func NewCLIUploader() *CLIUploader {
	return &CLIUploader{
		FileTemplate:   []string{"s3cmd", "put", "{src}", "s3://{bucket}/{dst}", "--acl-public"},
		FolderTemplate: []string{"s3cmd", "sync", "{src}/", "s3://{bucket}/", "--acl-public"},
	}
}

func renderTemplate(words []string, subs map[string]string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		for key, val := range subs {
			w = strings.ReplaceAll(w, "{"+key+"}", val)
		}
		out[i] = w
	}
	return out
}

// UploadFile shells out FileTemplate with {src}, {dst}, {bucket} substituted.
func (u *CLIUploader) UploadFile(ctx context.Context, localPath, remotePath, bucket string) error {
	words := renderTemplate(u.FileTemplate, map[string]string{
		"src": localPath, "dst": remotePath, "bucket": bucket,
	})
	return runCommand(ctx, words)
}

// UploadFolder shells out FolderTemplate with {src}, {bucket} substituted.
func (u *CLIUploader) UploadFolder(ctx context.Context, localDir, bucket string) error {
	words := renderTemplate(u.FolderTemplate, map[string]string{
		"src": localDir, "bucket": bucket,
	})
	return runCommand(ctx, words)
}

func runCommand(ctx context.Context, words []string) error {
	if len(words) == 0 {
		return errors.New("empty command template")
	}
	cmd := exec.CommandContext(ctx, words[0], words[1:]...) // #nosec G204 - command is operator-configured, not user input
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "command %v failed: %s", words, out)
	}
	return nil
}
