package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rr := httptest.NewRecorder()

	HealthHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestEmitNotificationHandlerValidation(t *testing.T) {
	StartHub()

	tests := []struct {
		name           string
		method         string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "missing userId",
			method:         http.MethodPost,
			body:           `{"notification":{"text":"hi"}}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"success":false,"error":"Missing userId or notification"}`,
		},
		{
			name:           "missing notification",
			method:         http.MethodPost,
			body:           `{"userId":"42"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"success":false,"error":"Missing userId or notification"}`,
		},
		{
			name:           "null notification",
			method:         http.MethodPost,
			body:           `{"userId":"42","notification":null}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"success":false,"error":"Missing userId or notification"}`,
		},
		{
			name:           "empty body",
			method:         http.MethodPost,
			body:           ``,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"success":false,"error":"Invalid JSON body"}`,
		},
		{
			name:           "malformed JSON",
			method:         http.MethodPost,
			body:           `{"userId":`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"success":false,"error":"Invalid JSON body"}`,
		},
		{
			name:           "numeric userId is accepted",
			method:         http.MethodPost,
			body:           `{"userId":42,"notification":{"text":"hi"}}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success":true}`,
		},
		{
			name:           "no recipients is still a success",
			method:         http.MethodPost,
			body:           `{"userId":"no-such-user","notification":{"text":"hi"}}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success":true}`,
		},
		{
			name:           "wrong method",
			method:         http.MethodGet,
			body:           ``,
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"Not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/emit-notification", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			EmitNotificationHandler(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestEmitNotificationHandlerPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/emit-notification", http.NoBody)
	rr := httptest.NewRecorder()

	EmitNotificationHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", rr.Header().Get("Access-Control-Allow-Headers"))
}

func TestNotFoundHandler(t *testing.T) {
	for _, target := range []string{"/", "/nope", "/emit"} {
		req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
		rr := httptest.NewRecorder()

		NotFoundHandler(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code, "path %s", target)
		assert.JSONEq(t, `{"error":"Not found"}`, rr.Body.String())
	}
}

func TestWebSocketHandlerRejectsWrongMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/ws", http.NoBody)
	rr := httptest.NewRecorder()

	WebSocketHandler(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestWebSocketHandlerRejectsMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	rr := httptest.NewRecorder()

	WebSocketHandler(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestWebSocketHandlerRejectsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=garbage", http.NoBody)
	rr := httptest.NewRecorder()

	WebSocketHandler(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		query      string
		expected   string
	}{
		{name: "bearer header", authHeader: "Bearer abc.def.ghi", expected: "abc.def.ghi"},
		{name: "query parameter", query: "?token=abc.def.ghi", expected: "abc.def.ghi"},
		{name: "header wins over query", authHeader: "Bearer header-token", query: "?token=query-token", expected: "header-token"},
		{name: "non-bearer header falls back to query", authHeader: "Basic dXNlcg==", query: "?token=query-token", expected: "query-token"},
		{name: "nothing supplied", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, http.NoBody)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			require.Equal(t, tt.expected, credentialFromRequest(req))
		})
	}
}
