package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// MemoryStore is an in-process bucket for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	bucket  string
	objects map[string]memObject
	now     func() time.Time
}

func NewMemoryStore(baseURL, bucket string) *MemoryStore {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &MemoryStore{
		baseURL: baseURL,
		bucket:  bucket,
		objects: make(map[string]memObject),
		now:     time.Now,
	}
}

func (s *MemoryStore) Bucket() string { return s.bucket }

func (s *MemoryStore) PublicURL(key string) string {
	return PublicURL(s.baseURL, s.bucket, key)
}

func (s *MemoryStore) Put(ctx context.Context, key string, body io.Reader, _ int64, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; ok && !opts.Upsert {
		return ErrObjectExists
	}
	s.objects[key] = memObject{data: data, contentType: opts.ContentType, updatedAt: s.now()}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.objects, key)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []ObjectInfo
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			items = append(items, ObjectInfo{Key: key, Size: int64(len(obj.data)), UpdatedAt: obj.updatedAt})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}

// Get returns the object body and content type.
func (s *MemoryStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.Clone(obj.data), obj.contentType, true
}

func (s *MemoryStore) Has(key string) bool {
	_, _, ok := s.Get(key)
	return ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Touch backdates an object, used to age objects past the orphan grace period.
func (s *MemoryStore) Touch(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj, ok := s.objects[key]; ok {
		obj.updatedAt = at
		s.objects[key] = obj
	}
}
