package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

type memObject struct {
	data        []byte
	contentType string
}

// Memory is an in-process ObjectStore for local runs and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memObject
	quota   int64

	// FailWith makes every operation fail with this error when set.
	FailWith error
}

func NewMemory(quota int64) *Memory {
	return &Memory{objects: map[string]memObject{}, quota: quota}
}

func (m *Memory) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	if m.FailWith != nil {
		return fail(ctx, "upload", key, m.FailWith)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fail(ctx, "upload", key, err)
	}
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	m.mu.Lock()
	m.objects[key] = memObject{data: data, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Download(ctx context.Context, key string, rng *ByteRange) (*Download, error) {
	if m.FailWith != nil {
		return nil, fail(ctx, "download", key, m.FailWith)
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fail(ctx, "download", key, ErrNotFound)
	}
	size := int64(len(obj.data))
	offset, length, err := rng.Resolve(size)
	if err != nil {
		return nil, fail(ctx, "download", key, err)
	}
	return &Download{
		Body:        io.NopCloser(bytes.NewReader(obj.data[offset : offset+length])),
		ContentType: obj.contentType,
		Size:        size,
		Offset:      offset,
		Length:      length,
		Partial:     rng != nil,
	}, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if m.FailWith != nil {
		return fail(ctx, "delete", key, m.FailWith)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return fail(ctx, "delete", key, ErrNotFound)
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	if m.FailWith != nil {
		return Stats{}, fail(ctx, "stats", "", m.FailWith)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var used int64
	for _, o := range m.objects {
		used += int64(len(o.data))
	}
	return statsFor(used, m.quota), nil
}

// Has reports whether key exists.
func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}
