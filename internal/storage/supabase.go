package storage

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
)

const supabaseListLimit = 1000

// SupabaseStore talks to the storage API of the hosted backend with the service key.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	bucket     string
}

func NewSupabaseStore(baseURL, serviceKey, bucket string) (*SupabaseStore, error) {
	if baseURL == "" || serviceKey == "" {
		return nil, errors.New("supabase storage requires supabase_url and service_key")
	}
	return &SupabaseStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
	}, nil
}

func (s *SupabaseStore) Bucket() string { return s.bucket }

func (s *SupabaseStore) PublicURL(key string) string {
	return PublicURL(s.baseURL, s.bucket, key)
}

func (s *SupabaseStore) headers() gout.H {
	return gout.H{
		"Authorization": "Bearer " + s.serviceKey,
		"apikey":        s.serviceKey,
	}
}

func (s *SupabaseStore) Put(ctx context.Context, key string, body io.Reader, _ int64, opts PutOptions) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return errors.Wrap(err, "read upload body")
	}
	cacheControl := opts.CacheControl
	if cacheControl == "" {
		cacheControl = DefaultCacheControl
	}

	var (
		code int
		resp string
	)
	err = gout.POST(s.baseURL+"/storage/v1/object/"+s.bucket+"/"+key).
		WithContext(ctx).
		SetHeader(s.headers(), gout.H{
			"Content-Type":  opts.ContentType,
			"Cache-Control": "max-age=" + cacheControl,
			"x-upsert":      strconv.FormatBool(opts.Upsert),
		}).
		SetBody(data).
		BindBody(&resp).
		Code(&code).
		Do()
	if err != nil {
		return errors.Wrap(err, "supabase upload")
	}
	switch {
	case code == http.StatusConflict, code == http.StatusBadRequest && strings.Contains(resp, "Duplicate"):
		return ErrObjectExists
	case code >= http.StatusMultipleChoices:
		return errors.Errorf("supabase upload %s: status %d: %s", key, code, resp)
	}
	return nil
}

func (s *SupabaseStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	var (
		code int
		resp string
	)
	err := gout.DELETE(s.baseURL + "/storage/v1/object/" + s.bucket).
		WithContext(ctx).
		SetHeader(s.headers()).
		SetJSON(gout.H{"prefixes": keys}).
		BindBody(&resp).
		Code(&code).
		Do()
	if err != nil {
		return errors.Wrap(err, "supabase remove")
	}
	if code >= http.StatusMultipleChoices {
		return errors.Errorf("supabase remove: status %d: %s", code, resp)
	}
	return nil
}

type supabaseEntry struct {
	Name      string     `json:"name"`
	ID        *string    `json:"id"`
	UpdatedAt *time.Time `json:"updated_at"`
	Metadata  *struct {
		Size int64 `json:"size"`
	} `json:"metadata"`
}

// List walks prefix recursively; entries without an id are folders.
func (s *SupabaseStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var items []ObjectInfo
	pending := []string{strings.Trim(prefix, "/")}
	for len(pending) > 0 {
		dir := pending[0]
		pending = pending[1:]
		for offset := 0; ; offset += supabaseListLimit {
			var (
				code    int
				entries []supabaseEntry
			)
			err := gout.POST(s.baseURL + "/storage/v1/object/list/" + s.bucket).
				WithContext(ctx).
				SetHeader(s.headers()).
				SetJSON(gout.H{"prefix": dir, "limit": supabaseListLimit, "offset": offset}).
				BindJSON(&entries).
				Code(&code).
				Do()
			if err != nil {
				return nil, errors.Wrap(err, "supabase list")
			}
			if code >= http.StatusMultipleChoices {
				return nil, errors.Errorf("supabase list %s: status %d", dir, code)
			}
			for _, e := range entries {
				key := e.Name
				if dir != "" {
					key = dir + "/" + e.Name
				}
				if e.ID == nil {
					pending = append(pending, key)
					continue
				}
				info := ObjectInfo{Key: key}
				if e.UpdatedAt != nil {
					info.UpdatedAt = *e.UpdatedAt
				}
				if e.Metadata != nil {
					info.Size = e.Metadata.Size
				}
				items = append(items, info)
			}
			if len(entries) < supabaseListLimit {
				break
			}
		}
	}
	return items, nil
}
