package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ndip-rw/data-portal-api/internal/models"
	"github.com/ndip-rw/data-portal-api/pkg/config"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
)

// QueryClient talks to the internal data query backend that executes preview
// samples against the warehouse. The portal never queries the warehouse
// directly.
type QueryClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewQueryClient constructs a client with the configured timeout.
func NewQueryClient(cfg config.QueryBackendConfig, logger *zap.Logger) *QueryClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QueryClient{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type previewQuery struct {
	DatasetID string                `json:"dataset_id"`
	Criteria  models.CriteriaValues `json:"criteria"`
	Limit     int                   `json:"limit"`
}

// Preview executes a bounded sample query for the given dataset and criteria.
// Backend failures surface as ErrBackendUnavailable so handlers map them to a
// 502 rather than a portal fault.
func (c *QueryClient) Preview(ctx context.Context, datasetID string, criteria models.CriteriaValues, limit int) (*models.PreviewResult, error) {
	payload, err := json.Marshal(previewQuery{DatasetID: datasetID, Criteria: criteria, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("marshal preview query: %w", err)
	}

	url := c.baseURL + "/v1/preview"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build preview request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("query backend unreachable", zap.String("dataset_id", datasetID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code,
			appErrors.ErrBackendUnavailable.Status, appErrors.ErrBackendUnavailable.Message)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("query backend error",
			zap.String("dataset_id", datasetID),
			zap.Int("status", resp.StatusCode))
		return nil, appErrors.Clone(appErrors.ErrBackendUnavailable,
			fmt.Sprintf("data query backend returned status %d", resp.StatusCode))
	}

	var result models.PreviewResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code,
			appErrors.ErrBackendUnavailable.Status, "malformed response from data query backend")
	}
	return &result, nil
}
