package packager

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

// fakeUploader keeps uploaded objects in memory.
type fakeUploader struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}

	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.bucket = aws.ToString(input.Bucket)
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}

	f.objects[aws.ToString(input.Key)] = body

	return &manager.UploadOutput{}, nil
}

// TestRun_Mirror uploads every artifact under the tag prefix.
func TestRun_Mirror(t *testing.T) {
	t.Parallel()

	u := newUpstream(t)
	cfg := u.config(t)
	cfg.Mirror.Enabled = true
	cfg.Mirror.Bucket = "releases"
	cfg.Mirror.Region = "eu-west-1"
	cfg.Mirror.Prefix = "umu/"

	uploader := &fakeUploader{}

	var stdout bytes.Buffer

	opts := u.options(cfg, &stdout)
	opts.Uploader = uploader

	require.NoError(t, Run(context.Background(), opts))
	require.Equal(t, "releases", uploader.bucket)
	require.Len(t, uploader.objects, 3)
	require.Contains(t, uploader.objects, "umu/"+testTag+"/umu-scout.tar.xz")
	require.Contains(t, uploader.objects, "umu/"+testTag+"/umu-scout.sha512sum")
	require.Contains(t, string(uploader.objects["umu/"+testTag+"/umu-scout.version.json"]), `"tag":"`+testTag+`"`)
}

// TestRun_MirrorFailure is fatal and suppresses the tag.
func TestRun_MirrorFailure(t *testing.T) {
	t.Parallel()

	u := newUpstream(t)
	cfg := u.config(t)
	cfg.Mirror.Enabled = true
	cfg.Mirror.Bucket = "releases"
	cfg.Mirror.Region = "eu-west-1"

	errDenied := errors.New("access denied")

	var stdout bytes.Buffer

	opts := u.options(cfg, &stdout)
	opts.Uploader = &fakeUploader{err: errDenied}

	require.ErrorIs(t, Run(context.Background(), opts), errDenied)
	require.Empty(t, stdout.String())
}

// TestObjectKey joins prefix, tag and file name.
func TestObjectKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "20241017/umu-scout.tar.xz", ObjectKey("", "20241017", "/tmp/dist/umu-scout.tar.xz"))
	require.Equal(t, "builds/20241017/umu-scout.sha512sum", ObjectKey("builds/", "20241017", "umu-scout.sha512sum"))
}

// TestPublished_Files omits the sidecar when it was not produced.
func TestPublished_Files(t *testing.T) {
	t.Parallel()

	published := &Published{Archive: "a", Manifest: "m"}
	require.Equal(t, []string{"a", "m"}, published.Files())

	published.Checksum = "c"
	require.Equal(t, []string{"a", "c", "m"}, published.Files())
}
