package handler

import (
	"context"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/labdocs/backend/internal/domain/document"
	"github.com/labdocs/backend/internal/infrastructure/logger"
	"github.com/labdocs/backend/internal/interfaces/http/dto"
	"github.com/labdocs/backend/internal/interfaces/http/middleware"
	"github.com/labdocs/backend/internal/interfaces/http/router"
)

// DocumentService generates and cancels documents
type DocumentService interface {
	Generate(ctx context.Context, documentType string, data *document.ReportRequest, lang string) (*document.RenderedDocument, error)
	Cancel(requestID string) bool
}

// DocumentHandler serves the document endpoints
type DocumentHandler struct {
	BaseHandler
	service DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(service DocumentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Generate renders the document named by the :type path parameter and
// streams the PDF back.
//
//	POST /api/v1/documents/:type?lang=xx
//
// The language comes from the lang query parameter, then the request
// body, then Accept-Language.
func (h *DocumentHandler) Generate(c *gin.Context) {
	docType := c.Param("type")
	c.Set(logger.GinDocumentTypeKey, docType)

	var req document.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	lang := c.Query("lang")
	if lang == "" && req.Lang == "" {
		lang = preferredLanguage(c.GetHeader("Accept-Language"))
	}

	doc, err := h.service.Generate(c.Request.Context(), docType, &req, lang)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", contentDisposition(doc))
	c.Header("X-Page-Count", strconv.Itoa(doc.PageCount))
	c.Header(middleware.RequestIDHeader, doc.RequestID)
	c.Data(http.StatusOK, doc.ContentType(), doc.Data)
}

// Cancel interrupts an in-flight headless render.
//
//	DELETE /api/v1/documents/requests/:id
func (h *DocumentHandler) Cancel(c *gin.Context) {
	requestID := c.Param("id")
	if !h.service.Cancel(requestID) {
		h.NotFound(c, "No in-flight render for request "+requestID)
		return
	}
	h.Success(c, dto.CancelResponse{RequestID: requestID, Cancelled: true})
}

// DocumentRoutes creates the route group for the document endpoints
func DocumentRoutes(h *DocumentHandler) *router.DomainGroup {
	group := router.NewDomainGroup("documents", "/documents")
	group.POST("/:type", h.Generate)
	group.Group("requests", "/requests").DELETE("/:id", h.Cancel)
	return group
}

func fileName(doc *document.RenderedDocument) string {
	return doc.DocumentType.String() + "-" + doc.RequestID + ".pdf"
}

// contentDisposition quotes the file name, switching to the RFC 2231
// form when department names or request ids carry non-ASCII text.
func contentDisposition(doc *document.RenderedDocument) string {
	v := mime.FormatMediaType("inline", map[string]string{"filename": fileName(doc)})
	if v == "" {
		return "inline"
	}
	return v
}

// preferredLanguage returns the highest weighted tag of an Accept-Language
// header, or "" when there is none.
func preferredLanguage(header string) string {
	if header == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 || tags[0] == language.Und {
		return ""
	}
	return tags[0].String()
}
