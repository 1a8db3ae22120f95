package storage

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/talkincode/storefront/config"
)

// SFTPStore keeps objects on a remote host, typically the document root of
// the web server named by the public base URL.
type SFTPStore struct {
	conn    *ssh.Client
	client  *sftp.Client
	root    string
	baseURL string
	bucket  string
}

func NewSFTPStore(cfg config.SFTPConfig, baseURL, bucket string) (*SFTPStore, error) {
	hostKey, err := hostKeyCallback(cfg.HostKey)
	if err != nil {
		return nil, err
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	conn, err := ssh.Dial("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(port)), &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Passwd)},
		HostKeyCallback: hostKey,
		Timeout:         10 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "ssh dial")
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "sftp client")
	}
	return &SFTPStore{
		conn:    conn,
		client:  client,
		root:    path.Join(cfg.Root, bucket),
		baseURL: baseURL,
		bucket:  bucket,
	}, nil
}

func hostKeyCallback(line string) (ssh.HostKeyCallback, error) {
	if strings.TrimSpace(line) == "" {
		zap.L().Warn("sftp storage: host key checking disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return nil, errors.Wrap(err, "parse sftp host key")
	}
	return ssh.FixedHostKey(pub), nil
}

func (s *SFTPStore) Bucket() string { return s.bucket }

func (s *SFTPStore) PublicURL(key string) string {
	return PublicURL(s.baseURL, s.bucket, key)
}

func (s *SFTPStore) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return path.Join(s.root, key), nil
}

func (s *SFTPStore) Put(ctx context.Context, key string, body io.Reader, _ int64, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if !opts.Upsert {
		if _, err := s.client.Stat(p); err == nil {
			return ErrObjectExists
		}
	}
	if err := s.client.MkdirAll(path.Dir(p)); err != nil {
		return errors.Wrap(err, "sftp mkdir")
	}
	f, err := s.client.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return errors.Wrap(err, "sftp open")
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = s.client.Remove(p)
		return errors.Wrap(err, "sftp write")
	}
	return errors.Wrap(f.Close(), "sftp close")
}

func (s *SFTPStore) Remove(ctx context.Context, keys ...string) error {
	var errs error
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		p, err := s.path(key)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := s.client.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = multierr.Append(errs, errors.Wrapf(err, "sftp remove %s", key))
		}
	}
	return errs
}

func (s *SFTPStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var items []ObjectInfo
	walker := s.client.Walk(path.Join(s.root, strings.Trim(prefix, "/")))
	for walker.Step() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := walker.Err(); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, errors.Wrap(err, "sftp walk")
		}
		info := walker.Stat()
		if info.IsDir() {
			continue
		}
		key := strings.TrimPrefix(strings.TrimPrefix(walker.Path(), s.root), "/")
		items = append(items, ObjectInfo{Key: key, Size: info.Size(), UpdatedAt: info.ModTime()})
	}
	return items, nil
}

func (s *SFTPStore) Close() error {
	return multierr.Combine(s.client.Close(), s.conn.Close())
}
