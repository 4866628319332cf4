// Package api is a client for the shop's remote REST API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
)

// Config configures the REST client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is a resty-backed client for the bills, customers and products endpoints.
type Client struct {
	httpClient *resty.Client
}

// NewClient builds a client for the given base URL.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if cfg.Token != "" {
		restyClient.SetAuthToken(cfg.Token)
	}

	return &Client{httpClient: restyClient}
}

// apiError is the error body returned by the shop server.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) text() string {
	if e == nil {
		return ""
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// Create posts rec to the endpoint of opType and returns the record the
// server answered with, which may be nil when the server sent no body.
// Transport failures and non-2xx answers are SYNC_DISPATCH_ERRORs; the
// latter carry the HTTP status.
func (c *Client) Create(ctx context.Context, opType models.OperationType, rec models.Record) (models.Record, error) {
	if !opType.Valid() {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "unknown operation type %q", opType)
	}

	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(rec).
		SetError(apiErr).
		Post(opType.Endpoint())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncDispatch, "POST "+opType.Endpoint(), err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, &apperrors.AppError{
			Code:    apperrors.ErrSyncDispatch,
			Message: fmt.Sprintf("POST %s: %s %s", opType.Endpoint(), resp.Status(), apiErr.text()),
			Status:  resp.StatusCode(),
		}
	}

	return decodeCreated(resp.Body()), nil
}

// List fetches every record of a collection. The server may answer with a
// bare JSON array or with {"data": [...]}.
func (c *Client) List(ctx context.Context, collection models.Collection) ([]models.Record, error) {
	switch collection {
	case models.Bills, models.Customers, models.Products:
	default:
		return nil, apperrors.Newf(apperrors.ErrUnknownCollection, "collection %q is not served remotely", collection)
	}

	path := "/api/" + string(collection)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncDispatch, "GET "+path, err)
	}
	if resp.IsError() {
		return nil, &apperrors.AppError{
			Code:    apperrors.ErrSyncDispatch,
			Message: "GET " + path + ": " + resp.Status(),
			Status:  resp.StatusCode(),
		}
	}

	recs, err := decodeList(resp.Body())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncDispatch, "decode "+path, err)
	}
	return recs, nil
}

// decodeCreated accepts {"data": {...}}, a bare object, or anything else
// (treated as no record).
func decodeCreated(body []byte) models.Record {
	if len(body) == 0 {
		return nil
	}
	var wrapped struct {
		Data models.Record `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data
	}
	var rec models.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil
	}
	return rec
}

func decodeList(body []byte) ([]models.Record, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var recs []models.Record
		err := json.Unmarshal(body, &recs)
		return recs, err
	}
	var wrapped struct {
		Data []models.Record `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}
