package memory

import (
	"context"
	"fmt"
	"sync"

	"chat-mirror/errors"
)

// Blobs is an in-memory object storage. Uploaded objects are addressed by
// their path and resolved through a mem:// download URL.
type Blobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	failErr error
}

func NewBlobs() *Blobs {
	return &Blobs{objects: make(map[string][]byte)}
}

// FailUploads makes every subsequent upload return err. Passing nil
// restores normal behavior. Test hook.
func (b *Blobs) FailUploads(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failErr = err
}

func (b *Blobs) Upload(_ context.Context, path string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failErr != nil {
		return "", b.failErr
	}
	b.objects[path] = append([]byte(nil), data...)
	return "mem://" + path, nil
}

func (b *Blobs) Fetch(_ context.Context, url string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[pathFromURL(url)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", url, errors.ErrBlobNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Exists reports whether an object was stored at the given path. Test hook.
func (b *Blobs) Exists(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[path]
	return ok
}

func pathFromURL(url string) string {
	const scheme = "mem://"
	if len(url) > len(scheme) && url[:len(scheme)] == scheme {
		return url[len(scheme):]
	}
	return url
}
