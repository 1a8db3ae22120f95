package storage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// LocalStore keeps objects on disk under {root}/{bucket}. The web server
// exposes the bucket directory under the public object path.
type LocalStore struct {
	root    string
	baseURL string
	bucket  string
}

func NewLocalStore(root, baseURL, bucket string) (*LocalStore, error) {
	s := &LocalStore{root: root, baseURL: baseURL, bucket: bucket}
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return nil, errors.Wrap(err, "create local bucket")
	}
	return s, nil
}

// Dir is the directory holding the bucket's objects.
func (s *LocalStore) Dir() string {
	return filepath.Join(s.root, s.bucket)
}

func (s *LocalStore) Bucket() string { return s.bucket }

func (s *LocalStore) PublicURL(key string) string {
	return PublicURL(s.baseURL, s.bucket, key)
}

func (s *LocalStore) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir(), filepath.FromSlash(key)), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader, _ int64, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrap(err, "create object dir")
	}
	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Upsert {
		flag = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(p, flag, 0o644)
	if os.IsExist(err) {
		return ErrObjectExists
	}
	if err != nil {
		return errors.Wrap(err, "open object")
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return errors.Wrap(err, "write object")
	}
	return errors.Wrap(f.Close(), "close object")
}

func (s *LocalStore) Remove(_ context.Context, keys ...string) error {
	var errs error
	for _, key := range keys {
		p, err := s.path(key)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = multierr.Append(errs, errors.Wrapf(err, "remove %s", key))
		}
	}
	return errs
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var items []ObjectInfo
	base := s.Dir()
	start := filepath.Join(base, filepath.FromSlash(strings.Trim(prefix, "/")))
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		items = append(items, ObjectInfo{Key: filepath.ToSlash(rel), Size: info.Size(), UpdatedAt: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list objects")
	}
	return items, nil
}
