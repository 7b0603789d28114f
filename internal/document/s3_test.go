package document

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
)

// fakeS3 serves objects from a map and records requested keys
type fakeS3 struct {
	objects map[string]string
	err     error
	headErr error
	lastKey string
	lastBkt string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastBkt = aws.ToString(in.Bucket)
	f.lastKey = aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[f.lastKey]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.lastBkt = aws.ToString(in.Bucket)
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func newTestS3Store(t *testing.T, f *fakeS3, prefix string) *S3Store {
	t.Helper()
	s, err := NewS3Store(S3Options{Client: f, Bucket: "docs-bucket", Prefix: prefix})
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	return s
}

func TestNewS3Store_Validation(t *testing.T) {
	if _, err := NewS3Store(S3Options{Bucket: "b"}); err == nil {
		t.Fatal("expected error for missing client")
	}
	if _, err := NewS3Store(S3Options{Client: &fakeS3{}}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}

func TestS3Store_GetDocument(t *testing.T) {
	f := &fakeS3{objects: map[string]string{
		"docs/v1/hello.json": `{ "msg": "hi" }`,
	}}
	s := newTestS3Store(t, f, "/docs/v1/")

	got, err := s.GetDocument(context.Background(), "hello.json")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if string(got) != `{"msg":"hi"}` {
		t.Fatalf("doc = %s", got)
	}
	if f.lastBkt != "docs-bucket" || f.lastKey != "docs/v1/hello.json" {
		t.Fatalf("requested s3://%s/%s", f.lastBkt, f.lastKey)
	}
}

func TestS3Store_NoPrefix(t *testing.T) {
	f := &fakeS3{objects: map[string]string{"a/b.json": `[1]`}}
	s := newTestS3Store(t, f, "")
	if _, err := s.GetDocument(context.Background(), "/a/b.json"); err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if f.lastKey != "a/b.json" {
		t.Fatalf("key = %q", f.lastKey)
	}
}

func TestS3Store_NotFound(t *testing.T) {
	s := newTestS3Store(t, &fakeS3{}, "docs")
	if _, err := s.GetDocument(context.Background(), "missing.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestS3Store_BackendError(t *testing.T) {
	boom := errors.New("connection reset")
	s := newTestS3Store(t, &fakeS3{err: boom}, "docs")
	_, err := s.GetDocument(context.Background(), "a.json")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped backend error", err)
	}
	if Kind(err) != "read_error" {
		t.Fatalf("Kind = %q", Kind(err))
	}
}

func TestS3Store_InvalidJSON(t *testing.T) {
	s := newTestS3Store(t, &fakeS3{objects: map[string]string{"docs/bad.json": `{"a":1}}`}}, "docs")
	if _, err := s.GetDocument(context.Background(), "bad.json"); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("err = %v, want ErrInvalidJSON", err)
	}
}

func TestS3Store_PathEscape(t *testing.T) {
	f := &fakeS3{}
	s := newTestS3Store(t, f, "docs/v1")
	if _, err := s.GetDocument(context.Background(), "../v2/secret.json"); !errors.Is(err, ErrPathEscape) {
		t.Fatalf("err = %v, want ErrPathEscape", err)
	}
	if f.lastKey != "" {
		t.Fatalf("escaping path reached S3 as %q", f.lastKey)
	}
}

func TestS3Store_Ping(t *testing.T) {
	f := &fakeS3{}
	s := newTestS3Store(t, f, "")
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	f.headErr = errors.New("forbidden")
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("Ping should surface HeadBucket errors")
	}
}

type fakeSSM struct {
	value *string
	err   error
	name  string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.name = aws.ToString(in.Name)
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: f.value}}, nil
}

func TestResolveS3Prefix(t *testing.T) {
	f := &fakeSSM{value: aws.String(" 2026-10-01.3 \n")}
	got, err := ResolveS3Prefix(context.Background(), f, "/docserve/release", "/docs/")
	if err != nil {
		t.Fatalf("ResolveS3Prefix: %v", err)
	}
	if got != "docs/2026-10-01.3" {
		t.Fatalf("prefix = %q", got)
	}
	if f.name != "/docserve/release" {
		t.Fatalf("param = %q", f.name)
	}
}

func TestResolveS3Prefix_EmptyBase(t *testing.T) {
	got, err := ResolveS3Prefix(context.Background(), &fakeSSM{value: aws.String("rel-7")}, "p", "")
	if err != nil || got != "rel-7" {
		t.Fatalf("prefix = %q, err = %v", got, err)
	}
}

func TestResolveS3Prefix_Errors(t *testing.T) {
	cases := map[string]*fakeSSM{
		"ssm error": {err: errors.New("throttled")},
		"nil value": {},
		"blank":     {value: aws.String("  ")},
		"dot dot":   {value: aws.String("../other")},
	}
	for name, f := range cases {
		if _, err := ResolveS3Prefix(context.Background(), f, "p", "docs"); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
