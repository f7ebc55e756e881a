package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/httpx"
	"github.com/farm2markets/xprestrack/internal/inventory/dto"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	productdto "github.com/farm2markets/xprestrack/internal/product/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUseCase struct {
	inbound  *dto.InboundInput
	outbound *dto.OutboundInput
	query    *dto.LotQuery
	err      error
}

func (s *stubUseCase) RecordOutbound(_ context.Context, in *dto.OutboundInput) (*dto.OutboundResult, error) {
	s.outbound = in
	if s.err != nil {
		return nil, s.err
	}
	return &dto.OutboundResult{Sale: &model.Sale{SaleID: "SALE-1"}, RemainingStock: 5, Status: model.LotStatusAvailable}, nil
}

func (s *stubUseCase) RecordInbound(_ context.Context, in *dto.InboundInput) (*dto.InboundResult, error) {
	s.inbound = in
	if s.err != nil {
		return nil, s.err
	}
	return &dto.InboundResult{Lot: &model.Lot{LotID: in.LotID, Product: in.ProductName}}, nil
}

func (s *stubUseCase) UpdateStatus(_ context.Context, id, status string) (*model.Lot, error) {
	if _, ok := model.ParseLotStatus(status); !ok {
		return nil, apperr.Validation("invalid status")
	}
	return &model.Lot{ID: id}, nil
}

func (s *stubUseCase) ListLots(_ context.Context, q *dto.LotQuery) ([]dto.LotView, error) {
	s.query = q
	return []dto.LotView{}, nil
}

func (s *stubUseCase) ListActiveBatches(context.Context) ([]model.Lot, error) {
	return []model.Lot{}, nil
}

func (s *stubUseCase) ListSales(context.Context, string) ([]model.Sale, error) {
	return []model.Sale{}, nil
}

func (s *stubUseCase) Dashboard(context.Context) (*dto.Dashboard, error) {
	return &dto.Dashboard{}, nil
}

func (s *stubUseCase) Wait(context.Context) error { return nil }

type stubProducts struct {
	calls int
}

func (p *stubProducts) EnsureEmergencyProduct(_ context.Context, in *productdto.CreateProductInput) (*model.Product, bool, error) {
	p.calls++
	return &model.Product{Name: strings.TrimSpace(in.Name), IsEmergency: true}, true, nil
}

func newApp(uc *stubUseCase, products *stubProducts) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})
	NewInventoryHandler(uc, products, logger.NewNop()).RegisterRoutes(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, httpx.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out httpx.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestRecordOutbound(t *testing.T) {
	uc := &stubUseCase{}
	app := newApp(uc, &stubProducts{})

	resp, body := doJSON(t, app, "POST", "/inventory/outbound",
		`{"lotId":"L-1","weightOut":12.5,"pieces":2,"metadata":{"bank":"Chase"}}`)
	assert.Equal(t, 201, resp.StatusCode)
	assert.True(t, body.Success)
	assert.Equal(t, 12.5, uc.outbound.WeightOut)
	assert.Equal(t, "Chase", uc.outbound.Metadata["bank"])
}

func TestRecordOutboundPassesMixedMetadata(t *testing.T) {
	uc := &stubUseCase{}
	app := newApp(uc, &stubProducts{})

	resp, _ := doJSON(t, app, "POST", "/inventory/outbound",
		`{"lotId":"L-1","weightOut":5,"metadata":{"bank":"Chase","surcharge":2.5,"cardFee":true}}`)
	assert.Equal(t, 201, resp.StatusCode)
	require.NotNil(t, uc.outbound)
	assert.Equal(t, "Chase", uc.outbound.Metadata["bank"])
	assert.Equal(t, 2.5, uc.outbound.Metadata["surcharge"])
	assert.Equal(t, true, uc.outbound.Metadata["cardFee"])
}

func TestRecordOutboundInsufficientStock(t *testing.T) {
	uc := &stubUseCase{err: &apperr.InsufficientStockError{LotID: "L-1", Available: 4, Requested: 9}}
	app := newApp(uc, &stubProducts{})

	resp, body := doJSON(t, app, "POST", "/inventory/outbound", `{"lotId":"L-1","weightOut":9}`)
	assert.Equal(t, 400, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Error.Code)
	assert.Equal(t, 4.0, body.Error.Details["available"])
	assert.Equal(t, 9.0, body.Error.Details["requested"])
}

func TestRecordOutboundNotFound(t *testing.T) {
	uc := &stubUseCase{err: apperr.NotFound("lot", "L-404")}
	resp, _ := doJSON(t, newApp(uc, &stubProducts{}), "POST", "/inventory/outbound", `{"lotId":"L-404","weightOut":1}`)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestRecordInboundMultipartWithEmergencyProduct(t *testing.T) {
	uc := &stubUseCase{}
	products := &stubProducts{}
	app := newApp(uc, products)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("product", "Wagyu"))
	require.NoError(t, w.WriteField("lotId", "L-9"))
	require.NoError(t, w.WriteField("qtyReceived", "80.5"))
	require.NoError(t, w.WriteField("expirationDate", "2026-06-30"))
	require.NoError(t, w.WriteField("emergencyProduct", "true"))
	fw, err := w.CreateFormFile("invoice", "invoice.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/inventory/inbound", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)

	assert.Equal(t, 1, products.calls)
	require.NotNil(t, uc.inbound)
	assert.Equal(t, "Wagyu", uc.inbound.ProductName)
	assert.Equal(t, 80.5, uc.inbound.QtyReceived)
	require.NotNil(t, uc.inbound.ExpirationDate)
	assert.Equal(t, "2026-06-30", uc.inbound.ExpirationDate.Format("2006-01-02"))
	require.NotNil(t, uc.inbound.Invoice)
	assert.Equal(t, "invoice.pdf", uc.inbound.Invoice.Filename)
	assert.Nil(t, uc.inbound.VoiceNote)
}

func TestRecordInboundValidatesBeforeEmergencyProduct(t *testing.T) {
	uc := &stubUseCase{}
	products := &stubProducts{}
	app := newApp(uc, products)

	resp, _ := doJSON(t, app, "POST", "/inventory/inbound",
		`{"product":"Wagyu","lotId":"L-9","qtyReceived":0,"emergencyProduct":true}`)
	assert.Equal(t, 400, resp.StatusCode)

	resp, _ = doJSON(t, app, "POST", "/inventory/inbound",
		`{"product":"Wagyu","lotId":"  ","qtyReceived":5,"emergencyProduct":true}`)
	assert.Equal(t, 400, resp.StatusCode)

	assert.Zero(t, products.calls)
	assert.Nil(t, uc.inbound)
}

func TestRecordInboundRejectsBadDate(t *testing.T) {
	uc := &stubUseCase{}
	resp, _ := doJSON(t, newApp(uc, &stubProducts{}), "POST", "/inventory/inbound",
		`{"product":"Ribeye","lotId":"L-1","qtyReceived":5,"productionDate":"yesterday"}`)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Nil(t, uc.inbound)
}

func TestUpdateStatus(t *testing.T) {
	app := newApp(&stubUseCase{}, &stubProducts{})

	resp, _ := doJSON(t, app, "PATCH", "/inventory/rec1", `{"status":"Damaged"}`)
	assert.Equal(t, 200, resp.StatusCode)

	resp, _ = doJSON(t, app, "PATCH", "/inventory/rec1", `{"status":"Frozen"}`)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestListLotsPassesStatus(t *testing.T) {
	uc := &stubUseCase{}
	resp, err := newApp(uc, &stubProducts{}).Test(httptest.NewRequest("GET", "/inventory?status=Low%20Stock", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Low Stock", uc.query.Status)
}

func TestReadOnlyRoutes(t *testing.T) {
	app := newApp(&stubUseCase{}, &stubProducts{})
	for _, path := range []string{"/inventory/active-batches", "/inventory/dashboard", "/inventory/sales?lotId=L-1"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode, path)
	}
}
