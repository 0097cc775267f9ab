package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the subset of the S3 client S3Source depends on, narrow enough to
// fake in tests without a live bucket.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a corpus of extension roots out of an S3 bucket, one
// extension per "directory" under Prefix (keys are grouped by their
// first path component below Prefix, mirroring LocalSource's one-level
// subdirectory convention).
type S3Source struct {
	Bucket string
	Prefix string

	client s3API
}

// NewS3Source loads default AWS config (environment, shared config file,
// or instance role, in that order, exactly as aws-sdk-go-v2/config resolves
// it) and returns a Source over bucket/prefix.
func NewS3Source(ctx context.Context, bucket, prefix string) (*S3Source, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("corpus: load AWS config: %w", err)
	}
	return &S3Source{Bucket: bucket, Prefix: prefix, client: s3.NewFromConfig(cfg)}, nil
}

// Walk implements Source.
func (s *S3Source) Walk(ctx context.Context, callback func(Extension) error) error {
	grouped := make(map[string]map[string]string) // extension root -> rel path -> key
	var paginator func(token *string) error

	paginator = func(token *string) error {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.Bucket),
			Prefix:            aws.String(s.Prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("corpus: list objects under s3://%s/%s: %w", s.Bucket, s.Prefix, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(strings.TrimPrefix(key, s.Prefix), "/")
			parts := strings.SplitN(rel, "/", 2)
			if len(parts) != 2 {
				continue
			}
			root, scriptRel := parts[0], parts[1]
			if !scriptExtensions[path.Ext(strings.ToLower(scriptRel))] {
				continue
			}
			if grouped[root] == nil {
				grouped[root] = make(map[string]string)
			}
			grouped[root][scriptRel] = key
		}
		if aws.ToBool(out.IsTruncated) {
			return paginator(out.NextContinuationToken)
		}
		return nil
	}

	if err := paginator(nil); err != nil {
		return err
	}

	for root, files := range grouped {
		ext := Extension{Root: path.Join(s.Bucket, s.Prefix, root), Scripts: make(map[string][]byte, len(files))}
		for rel, key := range files {
			content, err := s.getObject(ctx, key)
			if err != nil {
				return err
			}
			ext.Scripts[rel] = content
		}
		if err := callback(ext); err != nil {
			return err
		}
	}
	return nil
}

func (s *S3Source) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.Bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("corpus: get object s3://%s/%s: %w", s.Bucket, key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("corpus: read object body s3://%s/%s: %w", s.Bucket, key, err)
	}
	return buf.Bytes(), nil
}
