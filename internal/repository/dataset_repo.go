package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mozilla/clouseau/internal/common"
	"github.com/mozilla/clouseau/internal/domain"
	"github.com/mozilla/clouseau/pkg/logger"
)

// DatasetRepository loads catalogs and datasets from the upstream REST service
type DatasetRepository interface {
	FetchCatalog(ctx context.Context) (domain.Catalog, error)
	FetchDataset(ctx context.Context, key domain.DatasetKey) (domain.Dataset, error)
}

// UpstreamConfig upstream endpoint settings
type UpstreamConfig struct {
	BaseURL     string
	CatalogPath string
	DatasetPath string
	Timeout     time.Duration
	// DefaultProducts fills the catalog when the upstream only lists dates
	DefaultProducts []string
}

type httpDatasetRepository struct {
	cfg    UpstreamConfig
	client *http.Client
}

// NewHTTPDatasetRepository creates a repository talking to the upstream over HTTP.
// A nil client gets one with cfg.Timeout.
func NewHTTPDatasetRepository(cfg UpstreamConfig, client *http.Client) DatasetRepository {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &httpDatasetRepository{cfg: cfg, client: client}
}

// FetchCatalog GET <base><catalog_path>
func (r *httpDatasetRepository) FetchCatalog(ctx context.Context) (domain.Catalog, error) {
	start := time.Now()
	body, err := r.get(ctx, r.cfg.BaseURL+r.cfg.CatalogPath)
	if err != nil {
		observeFetch(fetchKindCatalog, start, err)
		return domain.Catalog{}, err
	}
	defer body.Close()

	catalog, err := domain.DecodeCatalog(body)
	observeFetch(fetchKindCatalog, start, err)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: %v", common.ErrLoadFailed, err)
	}
	if len(catalog.Products) == 0 {
		catalog.Products = append([]string{}, r.cfg.DefaultProducts...)
	}
	return catalog, nil
}

// FetchDataset GET <base><dataset_path>?channel=&product=&date=
func (r *httpDatasetRepository) FetchDataset(ctx context.Context, key domain.DatasetKey) (domain.Dataset, error) {
	params := url.Values{}
	params.Set("channel", key.Channel)
	params.Set("product", key.Product)
	params.Set("date", key.Date)

	start := time.Now()
	body, err := r.get(ctx, r.cfg.BaseURL+r.cfg.DatasetPath+"?"+params.Encode())
	if err != nil {
		observeFetch(fetchKindDataset, start, err)
		return nil, err
	}
	defer body.Close()

	ds, err := domain.DecodeDataset(body)
	observeFetch(fetchKindDataset, start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrLoadFailed, key, err)
	}

	logger.GetLogger().Debug().
		Str("key", key.String()).
		Int("signatures", len(ds)).
		Msg("dataset fetched")
	return ds, nil
}

func (r *httpDatasetRepository) get(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLoadFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLoadFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %w: GET %s returned %d",
			common.ErrLoadFailed, common.ErrUpstreamStatus, target, resp.StatusCode)
	}
	return resp.Body, nil
}
