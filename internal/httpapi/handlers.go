package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"call-insights/internal/apperr"
	"call-insights/internal/auth"
	"call-insights/internal/authtoken"
	"call-insights/internal/calls"
	"call-insights/internal/clients"
	"call-insights/internal/response"
	"call-insights/internal/storage"
	"call-insights/internal/validation"
	"call-insights/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: bind input through the validator, call internal services, project the result.
type Handlers struct {
	Validator   *validation.Engine
	Calls       *calls.Service
	Clients     *clients.Service
	Tokens      *authtoken.Service
	Objects     storage.ObjectStore
	Links       *auth.LinkSigner
	DB          utils.Pinger
	MasterToken string
}

// --- Health ---

func (h Handlers) Health(c *gin.Context) {
	if h.DB != nil {
		if err := utils.HealthCheck(c.Request.Context(), h.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Calls ---

func (h Handlers) CreateCall(c *gin.Context) {
	var req calls.CreateRequest
	if err := h.bindBody(c, calls.CreateSchema(), &req); err != nil {
		response.Fail(c, err)
		return
	}
	call, err := h.Calls.Create(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, call, calls.Shape)
}

// UploadCallInfo applies an analysis result to a previously ingested call.
func (h Handlers) UploadCallInfo(c *gin.Context) {
	var req calls.UploadInfoRequest
	if err := h.bindBody(c, calls.UploadInfoSchema(), &req); err != nil {
		response.Fail(c, err)
		return
	}
	call, err := h.Calls.UploadInfo(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, call, calls.Shape)
}

func (h Handlers) ListCalls(c *gin.Context) {
	var q listQuery[calls.Sort]
	if err := h.bindQuery(c, calls.ListSchema(), &q); err != nil {
		response.Fail(c, err)
		return
	}
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil {
		response.Fail(c, apperr.Unauthorized(err))
		return
	}
	page := q.page()
	items, total, err := h.Calls.List(c.Request.Context(), orgID, q.Sort, page)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Page(c, items, total, page, calls.Shape)
}

// DownloadTranscription streams the stored transcription. A single byte range is honoured.
// Signed links only open the call they were issued for.
func (h Handlers) DownloadTranscription(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := h.bindID(c, calls.OneSchema())
	if err != nil {
		response.Fail(c, err)
		return
	}
	if link, ok := auth.LinkFrom(ctx); ok && link.CallID != id.String() {
		response.Fail(c, apperr.Unauthorized(errors.New("link was issued for another call")))
		return
	}
	rng, err := storage.ParseRange(c.GetHeader("Range"))
	if err != nil {
		response.Fail(c, storage.RangeError(err))
		return
	}
	orgID, err := auth.OrgID(ctx)
	if err != nil {
		response.Fail(c, apperr.Unauthorized(err))
		return
	}

	d, err := h.Calls.Transcription(ctx, orgID, id, rng)
	if err != nil {
		response.Fail(c, err)
		return
	}
	defer d.Body.Close()

	status := http.StatusOK
	headers := map[string]string{"Accept-Ranges": "bytes"}
	if d.Partial {
		status = http.StatusPartialContent
		headers["Content-Range"] = d.ContentRange()
	}
	c.DataFromReader(status, d.Length, d.ContentType, d.Body, headers)
}

// TranscriptionLink issues a signed download URL that works without credentials.
func (h Handlers) TranscriptionLink(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := h.bindID(c, calls.OneSchema())
	if err != nil {
		response.Fail(c, err)
		return
	}
	orgID, err := auth.OrgID(ctx)
	if err != nil {
		response.Fail(c, apperr.Unauthorized(err))
		return
	}
	link, err := h.Calls.TranscriptionLink(ctx, orgID, id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	u := url.URL{
		Path:     strings.TrimSuffix(c.Request.URL.Path, "-link"),
		RawQuery: url.Values{"token": {link.Token}}.Encode(),
	}
	response.OK(c, http.StatusOK, gin.H{"url": u.String(), "expiresAt": link.ExpiresAt}, nil)
}

// --- Clients ---

func (h Handlers) ListClients(c *gin.Context) {
	var q listQuery[clients.Sort]
	if err := h.bindQuery(c, clients.ListSchema(), &q); err != nil {
		response.Fail(c, err)
		return
	}
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil {
		response.Fail(c, apperr.Unauthorized(err))
		return
	}
	page := q.page()
	items, total, err := h.Clients.List(c.Request.Context(), orgID, q.Sort, page)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Page(c, items, total, page, clients.Shape)
}

func (h Handlers) GetClient(c *gin.Context) {
	id, err := h.bindID(c, clients.OneSchema())
	if err != nil {
		response.Fail(c, err)
		return
	}
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil {
		response.Fail(c, apperr.Unauthorized(err))
		return
	}
	client, err := h.Clients.Get(c.Request.Context(), orgID, id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, client, clients.Shape)
}

// --- Auth tokens ---

func (h Handlers) CreateAuthToken(c *gin.Context) {
	var in authtoken.CreateInput
	if err := h.bindBody(c, authtoken.CreateSchema(), &in); err != nil {
		response.Fail(c, err)
		return
	}
	tok, err := h.Tokens.Create(c.Request.Context(), in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, tok, authtoken.Shape)
}

func (h Handlers) ListAuthTokens(c *gin.Context) {
	var q listQuery[struct{}]
	if err := h.bindQuery(c, authtoken.ListSchema(), &q); err != nil {
		response.Fail(c, err)
		return
	}
	page := q.page()
	items, total, err := h.Tokens.List(c.Request.Context(), page)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Page(c, items, total, page, authtoken.Shape)
}

func (h Handlers) DeleteAuthToken(c *gin.Context) {
	id, err := h.bindID(c, authtoken.OneSchema())
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.Tokens.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.NoContent(c)
}

// RevokeAuthToken rotates the token value; the old value stops resolving immediately.
func (h Handlers) RevokeAuthToken(c *gin.Context) {
	id, err := h.bindID(c, authtoken.OneSchema())
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.Tokens.Revoke(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.NoContent(c)
}

// --- Storage ---

func (h Handlers) StorageStats(c *gin.Context) {
	stats, err := h.Objects.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, stats, nil)
}
