package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	documentapp "github.com/labdocs/backend/internal/application/document"
	"github.com/labdocs/backend/internal/domain/document"
	"github.com/labdocs/backend/internal/infrastructure/canvas"
	"github.com/labdocs/backend/internal/infrastructure/logger"
	"github.com/labdocs/backend/internal/interfaces/http/dto"
	"github.com/labdocs/backend/internal/interfaces/http/middleware"
	"github.com/labdocs/backend/internal/interfaces/http/router"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockDocumentService struct {
	mock.Mock
}

func (m *mockDocumentService) Generate(ctx context.Context, documentType string, data *document.ReportRequest, lang string) (*document.RenderedDocument, error) {
	args := m.Called(ctx, documentType, data, lang)
	doc, _ := args.Get(0).(*document.RenderedDocument)
	return doc, args.Error(1)
}

func (m *mockDocumentService) Cancel(requestID string) bool {
	return m.Called(requestID).Bool(0)
}

func newTestEngine(svc DocumentService, maxBody int64) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.BodyLimit(maxBody))
	router.NewRouter(engine).
		Register(DocumentRoutes(NewDocumentHandler(svc))).
		RegisterPublic(HealthRoutes(NewHealthHandler("test", "chromedp", []string{"en", "fr"}))).
		Setup()
	return engine
}

const masterSlipBody = `{
	"patientInfo": {"name": "John Doe", "patientId": "P001"},
	"visitInfo": {"visitId": "V2024001"},
	"tests": [{"testName": "CBC", "department": "Hematology"}]
}`

func postDocument(engine *gin.Engine, docType, query, body string, headers map[string]string) *httptest.ResponseRecorder {
	target := "/api/v1/documents/" + docType
	if query != "" {
		target += "?" + query
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestDocumentHandler_Generate_CanvasEndToEnd(t *testing.T) {
	svc, err := documentapp.NewService(
		documentapp.WithBackend(canvas.NewBackend(nil, nil, canvas.WithCompression(false))),
		documentapp.WithResultsBackend(document.BackendCanvas),
	)
	require.NoError(t, err)
	engine := newTestEngine(svc, 1<<20)

	w := postDocument(engine, "masterSlip", "", masterSlipBody, map[string]string{
		middleware.RequestIDHeader: "slip-001",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("X-Page-Count"))
	assert.Equal(t, "slip-001", w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "inline; filename=masterSlip-slip-001.pdf", w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))
}

func TestDocumentHandler_Generate_PassesArguments(t *testing.T) {
	rendered := &document.RenderedDocument{
		Data:         []byte("%PDF-1.4 fake"),
		PageCount:    3,
		DocumentType: document.MustParseDocumentType("departmentSlip-Hematology"),
		RequestID:    "r-1",
	}

	tests := []struct {
		name     string
		query    string
		body     string
		headers  map[string]string
		wantLang string
	}{
		{"query wins", "lang=es", masterSlipBody, map[string]string{"Accept-Language": "fr"}, "es"},
		{"accept-language", "", masterSlipBody, map[string]string{"Accept-Language": "fr-FR;q=0.9, en;q=0.5"}, "fr-FR"},
		{"body lang left to the service", "", `{"lang": "fr"}`, map[string]string{"Accept-Language": "es"}, ""},
		{"nothing", "", masterSlipBody, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockDocumentService)
			svc.On("Generate", mock.Anything, "departmentSlip-Hematology", mock.AnythingOfType("*document.ReportRequest"), tt.wantLang).
				Return(rendered, nil).Once()

			w := postDocument(newTestEngine(svc, 1<<20), "departmentSlip-Hematology", tt.query, tt.body, tt.headers)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "3", w.Header().Get("X-Page-Count"))
			svc.AssertExpectations(t)
		})
	}
}

func TestDocumentHandler_Generate_ContentDisposition(t *testing.T) {
	tests := []struct {
		name       string
		department string
		requestID  string
		want       string
	}{
		{"quotes", `Micro "B" Lab`, "r-1", `departmentSlip-Micro "B" Lab-r-1.pdf`},
		{"header injection", "Chem", "r-1\"; attachment", `departmentSlip-Chem-r-1"; attachment.pdf`},
		{"non-ascii", "Hématologie", "r-2", "departmentSlip-Hématologie-r-2.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockDocumentService)
			svc.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(&document.RenderedDocument{
					Data:         []byte("%PDF-1.4 fake"),
					PageCount:    1,
					DocumentType: document.DocumentType{Kind: document.KindDepartmentSlip, Department: tt.department},
					RequestID:    tt.requestID,
				}, nil).Once()

			w := postDocument(newTestEngine(svc, 1<<20), "departmentSlip-x", "", masterSlipBody, nil)
			require.Equal(t, http.StatusOK, w.Code)

			disposition, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
			require.NoError(t, err)
			assert.Equal(t, "inline", disposition)
			assert.Equal(t, tt.want, params["filename"])
			assert.Len(t, params, 1)
		})
	}
}

func TestDocumentHandler_Generate_RequestIDInContext(t *testing.T) {
	svc := new(mockDocumentService)
	svc.On("Generate", mock.MatchedBy(func(ctx context.Context) bool {
		return logger.GetRequestID(ctx) == "ctx-42"
	}), "labSlip", mock.Anything, "").Return(&document.RenderedDocument{
		Data:         []byte("%PDF-1.4"),
		PageCount:    1,
		DocumentType: document.MustParseDocumentType("labSlip"),
		RequestID:    "ctx-42",
	}, nil)

	w := postDocument(newTestEngine(svc, 1<<20), "labSlip", "", masterSlipBody,
		map[string]string{middleware.RequestIDHeader: "ctx-42"})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestDocumentHandler_Generate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "unsupported type",
			err:        document.NewUnsupportedDocumentTypeError("bogus"),
			wantStatus: http.StatusBadRequest,
			wantCode:   document.ErrCodeUnsupportedDocumentType,
			wantMsg:    "bogus",
		},
		{
			name:       "invalid request",
			err:        document.NewInvalidRequestError("invalid request: patientInfo.patientId is required", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   document.ErrCodeInvalidRequest,
			wantMsg:    "patientInfo.patientId",
		},
		{
			name:       "overflow",
			err:        document.NewOverflowError("80 tests do not fit on the masterSlip card"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   document.ErrCodeOverflow,
		},
		{
			name:       "render timeout",
			err:        document.NewRenderTimeoutError("render exceeded 30s", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   document.ErrCodeRenderTimeout,
			wantMsg:    "timed out",
		},
		{
			name:       "engine failure hides details",
			err:        document.NewRenderEngineError("chrome crashed at 0xdeadbeef", nil),
			wantStatus: http.StatusInternalServerError,
			wantCode:   document.ErrCodeRenderEngine,
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   dto.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockDocumentService)
			svc.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			w := postDocument(newTestEngine(svc, 1<<20), "masterSlip", "", masterSlipBody,
				map[string]string{middleware.RequestIDHeader: "err-1"})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotEqual(t, "application/pdf", w.Header().Get("Content-Type"))
			info := decodeError(t, w)
			assert.Equal(t, tt.wantCode, info.Code)
			assert.Equal(t, "err-1", info.RequestID)
			if tt.wantMsg != "" {
				assert.Contains(t, info.Message, tt.wantMsg)
			}
			assert.NotContains(t, info.Message, "0xdeadbeef")
			assert.NotContains(t, info.Message, "boom")
		})
	}
}

func TestDocumentHandler_Generate_BadBody(t *testing.T) {
	svc := new(mockDocumentService)
	engine := newTestEngine(svc, 256)

	t.Run("invalid JSON", func(t *testing.T) {
		w := postDocument(engine, "labSlip", "", `{"patientInfo":`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeError(t, w).Code)
	})

	t.Run("empty body", func(t *testing.T) {
		w := postDocument(engine, "labSlip", "", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeError(t, w).Code)
	})

	t.Run("declared length too large", func(t *testing.T) {
		w := postDocument(engine, "labSlip", "", `{"x":"`+strings.Repeat("a", 512)+`"}`, nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("streamed body too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/labSlip",
			strings.NewReader(`{"x":"`+strings.Repeat("a", 512)+`"}`))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, dto.ErrCodeRequestTooLarge, decodeError(t, w).Code)
	})

	svc.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentHandler_Cancel(t *testing.T) {
	svc := new(mockDocumentService)
	svc.On("Cancel", "in-flight").Return(true)
	svc.On("Cancel", "done").Return(false)
	engine := newTestEngine(svc, 1<<20)

	t.Run("in flight", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/requests/in-flight", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success bool               `json:"success"`
			Data    dto.CancelResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, dto.CancelResponse{RequestID: "in-flight", Cancelled: true}, resp.Data)
	})

	t.Run("unknown request", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/requests/done", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decodeError(t, w).Code)
	})

	svc.AssertExpectations(t)
}

func TestDocumentHandler_SetsDocumentTypeForLogging(t *testing.T) {
	svc := new(mockDocumentService)
	svc.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, document.NewUnsupportedDocumentTypeError("nope"))

	var seen string
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Next()
		seen = c.GetString(logger.GinDocumentTypeKey)
	})
	DocumentRoutes(NewDocumentHandler(svc)).RegisterRoutes(engine.Group("/api/v1"))

	postDocument(engine, "nope", "", masterSlipBody, nil)
	assert.Equal(t, "nope", seen)
}

func TestPreferredLanguage(t *testing.T) {
	assert.Equal(t, "", preferredLanguage(""))
	assert.Equal(t, "es", preferredLanguage("es"))
	assert.Equal(t, "fr-CA", preferredLanguage("en;q=0.4, fr-CA;q=0.9"))
	assert.Equal(t, "", preferredLanguage("*"))
}
