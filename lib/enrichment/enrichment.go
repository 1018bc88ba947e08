package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"nomadscout/lib/telemetry"
	"nomadscout/lib/textutil"

	"github.com/go-resty/resty/v2"
	cache "github.com/patrickmn/go-cache"
)

type Config struct {
	BaseUrl   string `json:"base_url"`
	AccessKey string `json:"access_key"`
	// directory for resource snapshots, avoids refetching the whole
	// paginated dataset on every run; "" disables snapshots
	SnapshotDir string `json:"snapshot_dir"`
}

// Client adapts the aviation-stack style location API into per-name
// metadata lookups. The API only paginates full resources, so each
// resource is fetched once, indexed by name and cached.
type Client struct {
	http        *resty.Client
	accessKey   string
	snapshotDir string

	mu      sync.Mutex
	indexes *cache.Cache
}

func NewClient(cfg Config) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.BaseUrl)
	client.SetTimeout(time.Second * 20)
	telemetry.InstrumentResty(client, "enrichment/http")

	return &Client{
		http:        client,
		accessKey:   cfg.AccessKey,
		snapshotDir: cfg.SnapshotDir,
		indexes:     cache.New(12*time.Hour, time.Hour),
	}
}

func (c *Client) CountryMeta(ctx context.Context, name string) (map[string]string, error) {
	return c.lookup(ctx, "countries", "country_name", name)
}

func (c *Client) CityMeta(ctx context.Context, name string) (map[string]string, error) {
	return c.lookup(ctx, "cities", "city_name", name)
}

func (c *Client) lookup(ctx context.Context, resource, nameKey, name string) (map[string]string, error) {
	index, err := c.resourceIndex(ctx, resource, nameKey)
	if err != nil {
		return nil, err
	}
	meta := index[strings.ToLower(textutil.CleanText(name))]
	if meta == nil {
		// unknown names are routine, not an error
		return nil, nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out, nil
}

func (c *Client) resourceIndex(ctx context.Context, resource, nameKey string) (map[string]map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.indexes.Get(resource); ok {
		return cached.(map[string]map[string]string), nil
	}

	index, err := c.loadSnapshot(resource)
	if err == nil {
		c.indexes.Set(resource, index, cache.DefaultExpiration)
		return index, nil
	}

	index, err = c.fetchResource(ctx, resource, nameKey)
	if err != nil {
		return nil, err
	}
	c.indexes.Set(resource, index, cache.DefaultExpiration)
	c.writeSnapshot(resource, index)
	return index, nil
}

type apiPage struct {
	Pagination struct {
		Count  int `json:"count"`
		Total  int `json:"total"`
		Offset int `json:"offset"`
	} `json:"pagination"`
	Data []map[string]any `json:"data"`
}

// fetchResource walks every page of the resource and indexes the rows by
// lowercased name.
func (c *Client) fetchResource(ctx context.Context, resource, nameKey string) (map[string]map[string]string, error) {
	index := map[string]map[string]string{}

	offset := 0
	for {
		var page apiPage
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("access_key", c.accessKey).
			SetQueryParam("offset", fmt.Sprint(offset)).
			SetResult(&page).
			Get("/" + resource)
		if err != nil {
			return nil, err
		}
		if res.IsError() {
			return nil, fmt.Errorf("enrichment api %s: status %d", resource, res.StatusCode())
		}

		for _, row := range page.Data {
			name, _ := row[nameKey].(string)
			name = strings.ToLower(textutil.CleanText(name))
			if name == "" {
				continue
			}
			index[name] = flatten(row)
		}

		offset += page.Pagination.Count
		if page.Pagination.Count == 0 || offset >= page.Pagination.Total {
			break
		}
	}

	return index, nil
}

func flatten(row map[string]any) map[string]string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		switch value := v.(type) {
		case string:
			out[k] = value
		case float64:
			out[k] = fmt.Sprint(value)
		case bool:
			out[k] = fmt.Sprint(value)
		}
	}
	return out
}

func (c *Client) snapshotPath(resource string) string {
	return filepath.Join(c.snapshotDir, resource+".json")
}

func (c *Client) loadSnapshot(resource string) (map[string]map[string]string, error) {
	if c.snapshotDir == "" {
		return nil, os.ErrNotExist
	}
	raw, err := os.ReadFile(c.snapshotPath(resource))
	if err != nil {
		return nil, err
	}
	var index map[string]map[string]string
	err = json.Unmarshal(raw, &index)
	if err != nil {
		return nil, err
	}
	return index, nil
}

func (c *Client) writeSnapshot(resource string, index map[string]map[string]string) {
	if c.snapshotDir == "" {
		return
	}
	raw, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return
	}
	os.MkdirAll(c.snapshotDir, 0o755)
	os.WriteFile(c.snapshotPath(resource), raw, 0o644)
}

// Resty exposes the underlying client for tests.
func (c *Client) Resty() *resty.Client {
	return c.http
}
