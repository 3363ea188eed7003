package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return w.closeErr
}

type fakeFactory struct {
	writer      *recordingWriter
	bucket      string
	object      string
	contentType string
}

func (f *fakeFactory) NewWriter(_ context.Context, bucket, object, contentType string) io.WriteCloser {
	f.bucket, f.object, f.contentType = bucket, object, contentType
	return f.writer
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read boom") }

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.ErrorContains(t, err, "storage client is required")

	_, err = NewWithWriterFactory(nil, Config{Bucket: "b"})
	require.ErrorContains(t, err, "writer factory is required")

	_, err = NewWithWriterFactory(&fakeFactory{}, Config{})
	require.ErrorContains(t, err, "bucket name is required")
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{writer: &recordingWriter{}}
	store, err := NewWithWriterFactory(factory, Config{Bucket: "sorted-results"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "results/job/abc.json", "application/json", strings.NewReader(`{"sorted":[1]}`))
	require.NoError(t, err)
	require.Equal(t, "gs://sorted-results/results/job/abc.json", uri)
	require.Equal(t, "sorted-results", factory.bucket)
	require.Equal(t, "results/job/abc.json", factory.object)
	require.Equal(t, "application/json", factory.contentType)
	require.Equal(t, `{"sorted":[1]}`, factory.writer.String())
	require.True(t, factory.writer.closed)
}

func TestPutObjectErrors(t *testing.T) {
	t.Parallel()

	store, err := NewWithWriterFactory(&fakeFactory{writer: &recordingWriter{}}, Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " ", "", strings.NewReader("x"))
	require.ErrorContains(t, err, "path is required")

	_, err = store.PutObject(context.Background(), "p", "", failingReader{})
	require.ErrorContains(t, err, "copy object")

	closing := &fakeFactory{writer: &recordingWriter{closeErr: errors.New("upload rejected")}}
	store, err = NewWithWriterFactory(closing, Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "p", "", strings.NewReader("x"))
	require.ErrorContains(t, err, "close writer: upload rejected")
}
