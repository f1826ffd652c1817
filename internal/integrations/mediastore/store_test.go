package mediastore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakePresigner struct {
	putIn   *s3.PutObjectInput
	getIn   *s3.GetObjectInput
	expires time.Duration
	err     error
}

func (f *fakePresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.putIn = in
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{
		URL:          "https://media.s3.amazonaws.com/" + *in.Key + "?X-Amz-Signature=abc",
		Method:       http.MethodPut,
		SignedHeader: http.Header{"Host": {"media.s3.amazonaws.com"}, "Content-Type": {*in.ContentType}},
	}, nil
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.getIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://media.s3.amazonaws.com/" + *in.Key, Method: http.MethodGet}, nil
}

func TestUploadURL(t *testing.T) {
	api := &fakePresigner{}
	store, err := New(api, "media", 10*time.Minute)
	require.NoError(t, err)

	up, err := store.UploadURL(context.Background(), "t1", "Image/PNG")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(up.ImageRef, "chats/t1/"))
	require.True(t, strings.HasSuffix(up.ImageRef, ".png"))
	require.Equal(t, up.ImageRef, *api.putIn.Key)
	require.Equal(t, "media", *api.putIn.Bucket)
	require.Equal(t, "image/png", *api.putIn.ContentType)
	require.Equal(t, 10*time.Minute, api.expires)
	require.Equal(t, http.MethodPut, up.Method)
	require.Equal(t, "image/png", up.Headers["Content-Type"])
	require.NotContains(t, up.Headers, "Host")
}

func TestUploadURL_RejectsType(t *testing.T) {
	store, err := New(&fakePresigner{}, "media", 0)
	require.NoError(t, err)
	_, err = store.UploadURL(context.Background(), "t1", "application/pdf")
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestUploadURL_PresignError(t *testing.T) {
	store, err := New(&fakePresigner{err: errors.New("no credentials")}, "media", 0)
	require.NoError(t, err)
	_, err = store.UploadURL(context.Background(), "t1", "image/jpeg")
	require.ErrorContains(t, err, "no credentials")
}

func TestDownloadURL(t *testing.T) {
	api := &fakePresigner{}
	store, err := New(api, "media", 0)
	require.NoError(t, err)

	url, err := store.DownloadURL(context.Background(), "t1", "chats/t1/a.jpg")
	require.NoError(t, err)
	require.Contains(t, url, "chats/t1/a.jpg")

	_, err = store.DownloadURL(context.Background(), "t1", "chats/t2/a.jpg")
	require.ErrorIs(t, err, ErrForeignRef)
	_, err = store.DownloadURL(context.Background(), "t1", "chats/t1/../t2/a.jpg")
	require.ErrorIs(t, err, ErrForeignRef)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "media", 0)
	require.Error(t, err)
	_, err = New(&fakePresigner{}, " ", 0)
	require.Error(t, err)
}
