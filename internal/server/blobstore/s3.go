// Package blobstore is the object-storage gateway: it stores uploaded files
// in an S3-compatible bucket, hands back a stable retrieval URL, and deletes
// blobs by that URL.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	sc "github.com/dmitrijs2005/contentkeeper/internal/server/config"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
)

// ErrForeignReference is returned by Delete for URLs that do not point into
// the configured bucket.
var ErrForeignReference = errors.New("reference does not belong to this store")

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectAPI is the subset of the S3 client used by Store.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store puts and deletes blobs in a single bucket.
type Store struct {
	client  ObjectAPI
	bucket  string
	baseURL string
	now     func() time.Time
}

// New builds an S3 client from the server configuration. When a base
// endpoint is configured (MinIO and friends) path-style addressing is used.
func New(ctx context.Context, c *sc.Config) (*Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, c.S3Bucket, PublicBaseURL(c)), nil
}

// NewWithClient wires a Store to an existing client. baseURL is the prefix
// every returned URL starts with, without a trailing slash.
func NewWithClient(client ObjectAPI, bucket, baseURL string) *Store {
	return &Store{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// PublicBaseURL derives the URL prefix for objects in the configured bucket.
func PublicBaseURL(c *sc.Config) string {
	switch {
	case c.S3PublicBaseURL != "":
		return strings.TrimRight(c.S3PublicBaseURL, "/")
	case c.S3BaseEndpoint != "":
		return strings.TrimRight(c.S3BaseEndpoint, "/") + "/" + c.S3Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.S3Bucket, c.S3Region)
	}
}

// Put uploads u under prefix and returns its retrieval URL.
func (s *Store) Put(ctx context.Context, prefix string, u *models.Upload) (string, error) {
	if u == nil || u.Body == nil {
		return "", errors.New("invalid file provided for upload")
	}

	key := StorageKey(prefix, u.Filename, s.now())

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   u.Body,
	}
	if u.ContentType != "" {
		in.ContentType = aws.String(u.ContentType)
	}
	if u.Size > 0 {
		in.ContentLength = aws.Int64(u.Size)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return s.baseURL + "/" + key, nil
}

// Delete removes the blob ref points to.
func (s *Store) Delete(ctx context.Context, ref string) error {
	key, err := s.KeyFromURL(ref)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// KeyFromURL maps a URL returned by Put back to its object key.
func (s *Store) KeyFromURL(ref string) (string, error) {
	key, ok := strings.CutPrefix(ref, s.baseURL+"/")
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %s", ErrForeignReference, ref)
	}
	return key, nil
}

// StorageKey builds "<prefix>/<unix millis>-<uuid>-<filename>".
func StorageKey(prefix, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%d-%s-%s", strings.Trim(prefix, "/"), now.UnixMilli(), uuid.New(), sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "unknown"
	}
	return out
}
