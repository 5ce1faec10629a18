package s3api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/nozmo-king/chorum/lib/store"
)

// expiryMetadata holds the unix millisecond deadline of an object. S3 has no
// native per-object TTL.
const expiryMetadata = "x-chorum-expiry-ms"

type Store struct {
	s3     S3API
	bucket string
}

var _ store.Interface = (*Store)(nil)

func normalize(key string) string {
	return strings.ReplaceAll(key, ":", "/")
}

func (s *Store) Delete(ctx context.Context, key string) error {
	normKey := normalize(key)
	if _, err := s.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &normKey}); err != nil {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	if _, err := s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &normKey}); err != nil {
		return fmt.Errorf("can't delete from s3: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	normKey := normalize(key)
	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &normKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	defer out.Body.Close()

	if msStr, ok := out.Metadata[expiryMetadata]; ok && msStr != "" {
		if ms, err := strconv.ParseInt(msStr, 10, 64); err == nil {
			if time.Now().UnixMilli() >= ms {
				_, _ = s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &normKey})
				return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
			}
		}
	}

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("can't read s3 object: %w", err)
	}
	return b, nil
}

func (s *Store) put(ctx context.Context, key string, value []byte, expiry time.Duration, ifNoneMatch *string) error {
	normKey := normalize(key)
	var meta map[string]string
	if expiry > 0 {
		exp := time.Now().Add(expiry).UnixMilli()
		meta = map[string]string{expiryMetadata: strconv.FormatInt(exp, 10)}
	}
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &normKey,
		Body:        bytes.NewReader(value),
		Metadata:    meta,
		IfNoneMatch: ifNoneMatch,
	})
	return err
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	if err := s.put(ctx, key, value, expiry, nil); err != nil {
		return fmt.Errorf("can't put s3 object: %w", err)
	}
	return nil
}

// Add uses a conditional write (If-None-Match: *). An object that exists
// but has expired is removed by Get and the write is retried once.
func (s *Store) Add(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	for attempt := 0; attempt < 2; attempt++ {
		err := s.put(ctx, key, value, expiry, aws.String("*"))
		if err == nil {
			return nil
		}
		if !isPreconditionFailed(err) {
			return fmt.Errorf("can't put s3 object: %w", err)
		}

		if _, err := s.Get(ctx, key); err == nil || !errors.Is(err, store.ErrNotFound) {
			break
		}
	}

	return fmt.Errorf("%w: %q", store.ErrExists, key)
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

func (Store) IsPersistent() bool { return true }
