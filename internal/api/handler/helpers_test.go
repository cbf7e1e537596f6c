package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/nodewatch/internal/core"
	"github.com/edvin/nodewatch/internal/model"
)

const testThreshold = 180 * time.Second

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

func newRegistry(db core.DB) *core.RegistryService {
	return core.NewRegistryService(db, testThreshold)
}

// nodeRowScan fills one nodes row into scan destinations, in column order.
func nodeRowScan(rec model.NodeRecord) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = rec.NodeID
		*dest[1].(*string) = rec.IP
		*dest[2].(**string) = rec.Meta
		*dest[3].(*time.Time) = rec.LastSeen
		*dest[4].(*string) = string(rec.ReportedStatus)
		*dest[5].(*string) = string(rec.AlertedStatus)
		*dest[6].(*[]string) = rec.PeerIDs
		*dest[7].(**string) = rec.ExternalAccount
		*dest[8].(**string) = rec.OffchainIdentity
		*dest[9].(*bool) = rec.AlertEnabled
		*dest[10].(*[]byte) = nil
		*dest[11].(**time.Time) = rec.MetricsUpdatedAt
		*dest[12].(*time.Time) = rec.CreatedAt
		*dest[13].(*time.Time) = rec.UpdatedAt
		return nil
	}
}
