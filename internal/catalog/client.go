package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tamrstore/storefront/internal/domain"
	apperrors "github.com/tamrstore/storefront/pkg/errors"
	"github.com/tamrstore/storefront/pkg/httpclient"
)

// Client reads products from the shop's catalog API.
type Client struct {
	http    httpclient.Doer
	baseURL string
	logger  *slog.Logger
}

// NewClient returns a catalog client for baseURL.
func NewClient(doer httpclient.Doer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type productResponse struct {
	Data *domain.CatalogItem `json:"data"`
}

// Product fetches one product. A 404 from the API is returned as
// apperrors.ErrNotFound; transport failures and an open breaker as
// apperrors.ErrServiceUnavail.
func (c *Client) Product(ctx context.Context, id int64) (*domain.CatalogItem, error) {
	url := c.baseURL + "/api/products/" + strconv.FormatInt(id, 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.logger.WarnContext(ctx, "catalog request failed",
			slog.Int64("product_id", id),
			slog.String("error", err.Error()),
		)
		return nil, httpclient.TransportError(err, "catalog")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			_ = httpclient.ParseResponseError(resp, "catalog")
			return nil, apperrors.NotFound("product", strconv.FormatInt(id, 10))
		}
		return nil, httpclient.ParseResponseError(resp, "catalog")
	}

	var body productResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode catalog product %d: %w", id, err)
	}
	if body.Data == nil {
		return nil, apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	if body.Data.ID == 0 {
		body.Data.ID = id
	}
	return body.Data, nil
}
