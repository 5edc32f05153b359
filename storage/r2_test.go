package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestUploadReturnsCDNURL(t *testing.T) {
	fake := &fakePutter{}
	u := newR2Uploader(fake, "avatars-bucket", "https://cdn.example.com/")

	url, err := u.Upload(context.Background(), "avatars/u1/a.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/avatars/u1/a.png", url)
	assert.Equal(t, "avatars-bucket", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "image/png", aws.ToString(fake.in.ContentType))
	assert.Equal(t, "png", fake.body)
}

func TestUploadWrapsFailure(t *testing.T) {
	u := newR2Uploader(&fakePutter{err: errors.New("boom")}, "b", "https://cdn")

	_, err := u.Upload(context.Background(), "k", "image/png", strings.NewReader(""))
	assert.ErrorContains(t, err, "failed to upload to R2")
}
