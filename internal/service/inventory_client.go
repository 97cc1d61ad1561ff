package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"booking-service/internal/apperror"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Inventory is the booking core's view of the menu service
type Inventory interface {
	FetchItem(ctx context.Context, menuID string) (*models.MenuItem, error)
	Reserve(ctx context.Context, menuID string, quantity int) error
	Release(ctx context.Context, menuID string, quantity int) error
}

// InventoryClient talks to the menu service over HTTP
type InventoryClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewInventoryClient creates a new inventory client. timeout bounds every call.
func NewInventoryClient(baseURL string, timeout time.Duration) *InventoryClient {
	return &InventoryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

type menuItemResponse struct {
	Data struct {
		Price    json.Number `json:"Price"`
		Quantity int         `json:"Quantity"`
	} `json:"data"`
}

type quantityPatch struct {
	Quantity int `json:"quantity"`
	Dec      int `json:"dec"`
}

// FetchItem reads the current price and stock of an item
func (ic *InventoryClient) FetchItem(ctx context.Context, menuID string) (item *models.MenuItem, err error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.FetchItem", attribute.String("menu.id", menuID))
	defer func() { util.EndSpan(span, err) }()
	defer ic.observe("fetch", time.Now(), &err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ic.itemURL(menuID), nil)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUpstreamUnavailable, "failed to build inventory request", err)
	}

	resp, err := ic.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUpstreamUnavailable, "inventory service unavailable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperror.New(apperror.KindNotFound, fmt.Sprintf("menu item %s not found", menuID))
	case resp.StatusCode >= 300:
		return nil, ic.unexpectedStatus("fetch", menuID, resp)
	}

	var body menuItemResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, apperror.Wrap(apperror.KindUpstreamUnavailable, "malformed inventory response", err)
	}

	price, err := parsePrice(body.Data.Price)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUpstreamUnavailable, "malformed inventory price", err)
	}

	return &models.MenuItem{
		ID:                menuID,
		Price:             price,
		AvailableQuantity: body.Data.Quantity,
	}, nil
}

// Reserve decrements the available quantity of an item
func (ic *InventoryClient) Reserve(ctx context.Context, menuID string, quantity int) (err error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Reserve",
		attribute.String("menu.id", menuID), attribute.Int("quantity", quantity))
	defer func() { util.EndSpan(span, err) }()
	defer ic.observe("reserve", time.Now(), &err)

	return ic.patchQuantity(ctx, "reserve", menuID, quantityPatch{Quantity: quantity, Dec: 1})
}

// Release restores quantity previously reserved (compensation)
func (ic *InventoryClient) Release(ctx context.Context, menuID string, quantity int) (err error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Release",
		attribute.String("menu.id", menuID), attribute.Int("quantity", quantity))
	defer func() { util.EndSpan(span, err) }()
	defer ic.observe("release", time.Now(), &err)

	return ic.patchQuantity(ctx, "release", menuID, quantityPatch{Quantity: quantity, Dec: 0})
}

func (ic *InventoryClient) patchQuantity(ctx context.Context, op, menuID string, patch quantityPatch) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return apperror.Wrap(apperror.KindUpstreamUnavailable, "failed to encode inventory request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, ic.itemURL(menuID)+"/quantity", bytes.NewReader(payload))
	if err != nil {
		return apperror.Wrap(apperror.KindUpstreamUnavailable, "failed to build inventory request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ic.httpClient.Do(req)
	if err != nil {
		return apperror.Wrap(apperror.KindUpstreamUnavailable, "inventory service unavailable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return apperror.New(apperror.KindNotFound, fmt.Sprintf("menu item %s not found", menuID))
	case op == "reserve" && resp.StatusCode < 500:
		return apperror.New(apperror.KindInsufficientInventory,
			fmt.Sprintf("not enough stock for menu item %s", menuID))
	default:
		return ic.unexpectedStatus(op, menuID, resp)
	}
}

func (ic *InventoryClient) unexpectedStatus(op, menuID string, resp *http.Response) error {
	ic.logger.Warn("Unexpected inventory response",
		zap.String("operation", op),
		zap.String("menu_id", menuID),
		zap.Int("status", resp.StatusCode))
	return apperror.New(apperror.KindUpstreamUnavailable,
		fmt.Sprintf("inventory service returned status %d", resp.StatusCode))
}

func (ic *InventoryClient) itemURL(menuID string) string {
	return fmt.Sprintf("%s/api/v1/menu/%s", ic.baseURL, url.PathEscape(menuID))
}

func (ic *InventoryClient) observe(op string, start time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = apperror.KindOf(*errp).String()
	}
	util.InventoryRequestLatency.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

// parsePrice accepts integral prices only; amounts are kept in minor units.
func parsePrice(n json.Number) (int64, error) {
	if n == "" {
		return 0, fmt.Errorf("price missing")
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("fractional price %s", n)
	}
	return int64(f), nil
}
