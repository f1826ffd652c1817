// Package mediastore issues presigned S3 URLs for chat images.
package mediastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("mediastore: unsupported content type")
	ErrForeignRef      = errors.New("mediastore: reference outside thread")
)

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// presignAPI is satisfied by *s3.PresignClient.
type presignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Upload is a presigned PUT the client performs directly against S3.
type Upload struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ImageRef  string            `json:"imageRef"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type Store struct {
	api    presignAPI
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

func New(api presignAPI, bucket string, ttl time.Duration) (*Store, error) {
	if api == nil {
		return nil, errors.New("mediastore: presign client must not be nil")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("mediastore: bucket must not be empty")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{api: api, bucket: bucket, ttl: ttl, now: time.Now}, nil
}

// NewFromClient wraps a regular S3 client.
func NewFromClient(client *s3.Client, bucket string, ttl time.Duration) (*Store, error) {
	return New(s3.NewPresignClient(client), bucket, ttl)
}

func threadPrefix(threadID string) string {
	return "chats/" + threadID + "/"
}

// UploadURL presigns an upload of one image into the thread's folder.
func (s *Store) UploadURL(ctx context.Context, threadID, contentType string) (Upload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := extensions[contentType]
	if !ok {
		return Upload{}, fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	key := threadPrefix(threadID) + uuid.NewString() + "." + ext

	req, err := s.api.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return Upload{}, fmt.Errorf("mediastore: presign put: %w", err)
	}

	headers := map[string]string{"Content-Type": contentType}
	for k, v := range req.SignedHeader {
		if len(v) > 0 && !strings.EqualFold(k, "host") {
			headers[k] = v[0]
		}
	}
	return Upload{
		URL:       req.URL,
		Method:    req.Method,
		Headers:   headers,
		ImageRef:  key,
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}, nil
}

// DownloadURL presigns a read of an image previously uploaded to threadID.
func (s *Store) DownloadURL(ctx context.Context, threadID, ref string) (string, error) {
	if !strings.HasPrefix(ref, threadPrefix(threadID)) || strings.Contains(ref, "..") {
		return "", ErrForeignRef
	}
	req, err := s.api.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("mediastore: presign get: %w", err)
	}
	return req.URL, nil
}
