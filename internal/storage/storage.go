// Package storage holds the object store backends product images live in.
package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/talkincode/storefront/config"
)

const (
	DefaultBucket = "products"
	// ImagePrefix is the key prefix every product image is stored under.
	ImagePrefix = "product-images"
	// DefaultCacheControl is the max-age, in seconds, objects are served with.
	DefaultCacheControl = "3600"

	publicMarker = "/storage/v1/object/public/"
)

var ErrObjectExists = errors.New("storage: object already exists")

type PutOptions struct {
	ContentType  string
	CacheControl string
	Upsert       bool
}

type ObjectInfo struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
}

// ObjectStore is a bucket of publicly readable objects addressed by key.
type ObjectStore interface {
	Bucket() string
	// Put writes an object. Without opts.Upsert an existing key fails with ErrObjectExists.
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error
	PublicURL(key string) string
	// Remove deletes the given keys; missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// PublicPath is the URL path objects of bucket are published under.
func PublicPath(bucket string) string {
	return publicMarker + bucket
}

// PublicURL builds {base}/storage/v1/object/public/{bucket}/{key}.
func PublicURL(baseURL, bucket, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(baseURL, "/") + publicMarker + bucket + "/" + strings.Join(segs, "/")
}

// KeyFromPublicURL recovers the object key from a public URL of bucket. It
// reports false when the URL does not point into the bucket.
func KeyFromPublicURL(bucket, rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	_, key, found := strings.Cut(u.Path, publicMarker+bucket+"/")
	if !found || key == "" {
		return "", false
	}
	return key, true
}

// New opens the backend selected by cfg.Storage.Backend.
func New(cfg *config.AppConfig) (ObjectStore, error) {
	sc := cfg.Storage
	bucket := sc.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	switch sc.Backend {
	case "", "local":
		return NewLocalStore(cfg.GetStorageDir(), sc.PublicBaseURL, bucket)
	case "supabase":
		return NewSupabaseStore(sc.SupabaseURL, sc.ServiceKey, bucket)
	case "sftp":
		return NewSFTPStore(sc.SFTP, sc.PublicBaseURL, bucket)
	case "memory":
		return NewMemoryStore(sc.PublicBaseURL, bucket), nil
	default:
		return nil, errors.Errorf("unsupported storage backend %q", sc.Backend)
	}
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", errors.New("storage: empty key")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return "", errors.Errorf("storage: invalid key %q", key)
		}
	}
	return key, nil
}
