package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ArtifactStore implements ArtifactStore backed by S3

type S3ArtifactStore struct {
	bucket string
	prefix string
	s3     s3PutObjectAPI
}

func NewS3ArtifactStore(s3Client s3PutObjectAPI, bucket, prefix string) *S3ArtifactStore {
	return &S3ArtifactStore{
		bucket: bucket,
		prefix: prefix,
		s3:     s3Client,
	}
}

// Key returns the object key an artifact name maps to.
func (s *S3ArtifactStore) Key(name string) string {
	return path.Join(s.prefix, strings.TrimPrefix(name, "/"))
}

func (s *S3ArtifactStore) Save(ctx context.Context, name string, content []byte) error {
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(name)),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to put artifact object to S3: %w", err)
	}
	return nil
}

func contentType(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".md") {
		return "text/markdown; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}
