package backup

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"path"
	"strings"
)

const defaultS3Region = "us-east-1"

// S3Config describes where snapshots are uploaded. Credentials come from the
// aws CLI's own environment and profile chain.
type S3Config struct {
	BucketURL string
	Endpoint  string // for S3-compatible stores; scheme defaults to https
	Region    string
}

// S3Uploader copies snapshots with `aws s3 cp`.
type S3Uploader struct {
	bucket    string
	keyPrefix string
	endpoint  string
	region    string
	run       func(ctx context.Context, args ...string) ([]byte, error)
}

// NewS3Uploader parses BucketURL (s3://bucket[/prefix]) and checks that the
// aws CLI is installed.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	bucket, prefix, err := parseS3BucketURL(cfg.BucketURL)
	if err != nil {
		return nil, err
	}
	if _, err := exec.LookPath("aws"); err != nil {
		return nil, fmt.Errorf("s3: aws cli not found in PATH")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultS3Region
	}
	return &S3Uploader{
		bucket:    bucket,
		keyPrefix: prefix,
		endpoint:  normalizeEndpoint(cfg.Endpoint),
		region:    region,
		run:       runAWS,
	}, nil
}

// UploadFile copies localPath to the bucket under the configured prefix.
func (u *S3Uploader) UploadFile(ctx context.Context, localPath string) error {
	out, err := u.run(ctx, u.copyArgs(localPath)...)
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (u *S3Uploader) copyArgs(localPath string) []string {
	key := path.Base(localPath)
	if u.keyPrefix != "" {
		key = path.Join(u.keyPrefix, key)
	}
	args := []string{"s3", "cp", localPath, fmt.Sprintf("s3://%s/%s", u.bucket, key),
		"--region", u.region, "--only-show-errors"}
	if u.endpoint != "" {
		args = append(args, "--endpoint-url", u.endpoint)
	}
	return args
}

func runAWS(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "aws", args...).CombinedOutput()
}

func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}

func parseS3BucketURL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("s3: parse bucket-url: %w", err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("s3: bucket-url must use s3:// scheme")
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", "", fmt.Errorf("s3: bucket-url missing bucket name")
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
