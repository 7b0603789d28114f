package document

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/smithy-go"

	"github.com/keithlinneman/docserve/internal/xerrors"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// SSMAPI is the subset of the SSM client used to resolve a pinned release.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// S3Options configures an S3Store. Client and Bucket are required.
type S3Options struct {
	Client S3API
	Bucket string
	// documents live at s3://{Bucket}/{Prefix}/{path}
	Prefix string
}

// S3Store serves documents from objects in an S3 bucket.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store validates opts and returns a store reading from the bucket.
// Surrounding slashes on Prefix are ignored.
func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Client == nil {
		return nil, xerrors.New("s3 client is required")
	}
	if opts.Bucket == "" {
		return nil, xerrors.New("s3 bucket is required")
	}
	return &S3Store{
		client: opts.Client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

// key maps a cleaned document path to its object key
func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// GetDocument downloads the object for p and parses it as one JSON value.
func (s *S3Store) GetDocument(ctx context.Context, p string) (json.RawMessage, error) {
	name, err := cleanPath(p)
	if err != nil {
		return nil, xerrors.Wrapf(err, "resolve %q", p)
	}
	key := s.key(name)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, xerrors.Wrapf(ErrNotFound, "s3://%s/%s", s.bucket, key)
		}
		return nil, xerrors.Wrapf(err, "get s3://%s/%s", s.bucket, key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read s3://%s/%s", s.bucket, key)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, xerrors.Wrapf(err, "parse s3://%s/%s", s.bucket, key)
	}
	return doc, nil
}

// Ping checks that the bucket exists and is accessible.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return xerrors.Wrapf(err, "head bucket %s", s.bucket)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// ResolveS3Prefix reads a release id from the SSM parameter and appends it
// to base, so a deploy can repoint the store by updating one parameter.
func ResolveS3Prefix(ctx context.Context, client SSMAPI, param, base string) (string, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", param)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", param)
	}
	rev := strings.Trim(strings.TrimSpace(*out.Parameter.Value), "/")
	if rev == "" || strings.Contains(rev, "..") {
		return "", xerrors.Newf("SSM parameter %s has invalid release id %q", param, rev)
	}
	return path.Join(strings.Trim(base, "/"), rev), nil
}
