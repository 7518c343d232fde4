package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	meta ObjectMeta
}

// MemoryBackend is an in-memory Backend. Failures can be injected per key to
// exercise partial-failure paths.
type MemoryBackend struct {
	mu       sync.RWMutex
	baseURL  string
	objects  map[string]memoryObject
	listErrs map[string]error
	metaErrs map[string]error
	delErrs  map[string]error
	urlErrs  map[string]error
	metaHits int
}

// NewMemoryBackend creates an empty backend whose access URLs start with baseURL.
func NewMemoryBackend(baseURL string) *MemoryBackend {
	return &MemoryBackend{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		objects:  make(map[string]memoryObject),
		listErrs: make(map[string]error),
		metaErrs: make(map[string]error),
		delErrs:  make(map[string]error),
		urlErrs:  make(map[string]error),
	}
}

// Put stores an object with the md5 of data as its hash.
func (m *MemoryBackend) Put(key string, data []byte, created time.Time) {
	sum := md5.Sum(data)
	m.PutMeta(key, ObjectMeta{Hash: hex.EncodeToString(sum[:]), Size: int64(len(data)), TimeCreated: created})
}

// PutMeta stores an object with explicit metadata. An empty hash simulates
// an object without a content digest.
func (m *MemoryBackend) PutMeta(key string, meta ObjectMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[strings.TrimPrefix(key, "/")] = memoryObject{meta: meta}
}

// FailList makes List on the given folder fail.
func (m *MemoryBackend) FailList(prefix string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErrs[FolderPrefix(prefix)] = err
}

// FailMetadata makes Metadata on key fail.
func (m *MemoryBackend) FailMetadata(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metaErrs[key] = err
}

// FailDelete makes Delete on key fail.
func (m *MemoryBackend) FailDelete(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delErrs[key] = err
}

// FailAccessURL makes AccessURL on key fail.
func (m *MemoryBackend) FailAccessURL(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urlErrs[key] = err
}

// Exists reports whether key is stored.
func (m *MemoryBackend) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// Keys returns all stored keys in lexical order.
func (m *MemoryBackend) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MetadataCalls returns how many Metadata calls were served.
func (m *MemoryBackend) MetadataCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metaHits
}

func (m *MemoryBackend) List(ctx context.Context, prefix string) (*Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix = FolderPrefix(prefix)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.listErrs[prefix]; ok {
		return nil, &ObjectError{Op: "List", Key: prefix, Err: err}
	}

	out := &Listing{}
	folders := make(map[string]struct{})
	for key := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			folders[prefix+rest[:idx+1]] = struct{}{}
			continue
		}
		out.Files = append(out.Files, NewObjectRef(key))
	}
	for f := range folders {
		out.Subfolders = append(out.Subfolders, f)
	}
	sort.Slice(out.Files, func(i, j int) bool { return out.Files[i].Path < out.Files[j].Path })
	sort.Strings(out.Subfolders)
	return out, nil
}

func (m *MemoryBackend) Metadata(ctx context.Context, ref ObjectRef) (ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return ObjectMeta{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metaHits++
	if err, ok := m.metaErrs[ref.Path]; ok {
		return ObjectMeta{}, &ObjectError{Op: "Head", Key: ref.Path, Err: err}
	}
	obj, ok := m.objects[ref.Path]
	if !ok {
		return ObjectMeta{}, &ObjectError{Op: "Head", Key: ref.Path, Err: ErrNotFound}
	}
	return obj.meta, nil
}

func (m *MemoryBackend) AccessURL(ctx context.Context, ref ObjectRef) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.urlErrs[ref.Path]; ok {
		return "", &ObjectError{Op: "AccessURL", Key: ref.Path, Err: err}
	}
	return m.baseURL + "/" + ref.Path, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, ref ObjectRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.delErrs[ref.Path]; ok {
		return &ObjectError{Op: "Delete", Key: ref.Path, Err: err}
	}
	if _, ok := m.objects[ref.Path]; !ok {
		return &ObjectError{Op: "Delete", Key: ref.Path, Err: ErrNotFound}
	}
	delete(m.objects, ref.Path)
	return nil
}
