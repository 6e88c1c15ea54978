package evidence

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	calls       int
	bucket      string
	key         string
	contentType string
	size        int64
	sha256      string
	body        []byte
}

func (f *fakeUploader) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, contentType, sha256 string) error {
	f.calls++
	f.bucket, f.key, f.size, f.contentType, f.sha256 = bucket, key, size, contentType, sha256
	data, err := io.ReadAll(r)
	f.body = data
	return err
}

func (f *fakeUploader) PublicURL(bucket, key string) string {
	return "http://files.local/" + bucket + "/" + key
}

func (f *fakeUploader) PresignGet(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return "http://files.local/" + bucket + "/" + key + "?ttl=" + ttl.String(), nil
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		want        error
	}{
		{name: "jpeg", contentType: "image/jpeg", size: 1024},
		{name: "jpg alias", contentType: "image/jpg", size: 1024},
		{name: "png with params", contentType: "image/png; charset=binary", size: 1024},
		{name: "pdf at limit", contentType: "application/pdf", size: MaxSize},
		{name: "gif", contentType: "image/gif", size: 1024, want: ErrUnsupportedType},
		{name: "no type", contentType: "", size: 1024, want: ErrUnsupportedType},
		{name: "empty", contentType: "image/png", size: 0, want: ErrEmpty},
		{name: "over limit", contentType: "application/pdf", size: MaxSize + 1, want: ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.contentType, tt.size)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUploadRejectsWithoutCallingUploader(t *testing.T) {
	up := &fakeUploader{}
	store, err := NewStore(up, Config{Bucket: "medical-files"})
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), uuid.New(), "slip.gif", "image/gif", 10, strings.NewReader("GIF89a...."))
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = store.Upload(context.Background(), uuid.New(), "slip.pdf", "application/pdf", 6<<20, bytes.NewReader(make([]byte, 6<<20)))
	require.ErrorIs(t, err, ErrTooLarge)

	// Declared size lies; the body is still capped.
	_, err = store.Upload(context.Background(), uuid.New(), "slip.pdf", "application/pdf", 10, bytes.NewReader(make([]byte, MaxSize+10)))
	require.ErrorIs(t, err, ErrTooLarge)

	assert.Zero(t, up.calls)
}

func TestUploadStoresUnderPatientPrefix(t *testing.T) {
	up := &fakeUploader{}
	store, err := NewStore(up, Config{Bucket: "medical-files"})
	require.NoError(t, err)

	patientID := uuid.New()
	obj, err := store.Upload(context.Background(), patientID, "Scan.JPEG", "image/jpeg", 5, strings.NewReader("hello"))
	require.NoError(t, err)

	require.Equal(t, 1, up.calls)
	assert.Equal(t, "medical-files", up.bucket)
	assert.True(t, strings.HasPrefix(obj.Key, "lab-slips/"+patientID.String()+"/"), obj.Key)
	assert.True(t, strings.HasSuffix(obj.Key, ".jpeg"), obj.Key)
	assert.Equal(t, "image/jpeg", up.contentType)
	assert.Equal(t, []byte("hello"), up.body)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", obj.SHA256)
	assert.Equal(t, "http://files.local/medical-files/"+obj.Key, obj.URL)
}

func TestUploadPresignsWhenConfigured(t *testing.T) {
	up := &fakeUploader{}
	store, err := NewStore(up, Config{Bucket: "medical-files", PresignTTL: time.Hour})
	require.NoError(t, err)

	obj, err := store.Upload(context.Background(), uuid.New(), "", "application/pdf", 3, strings.NewReader("pdf"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(obj.Key, ".pdf"), obj.Key)
	assert.True(t, strings.HasSuffix(obj.URL, "?ttl=1h0m0s"), obj.URL)
}
