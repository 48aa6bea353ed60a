package httpapi

import (
	"call-insights/internal/auth"
	"call-insights/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register wires every route onto r. Guards are attached per route so the same path can
// serve the service pipeline and end users under different credentials.
func Register(r gin.IRouter, h Handlers) {
	r.GET("/healthz", h.Health)

	service := auth.RequireService(h.MasterToken)
	user := []gin.HandlerFunc{auth.RequireUser(h.Tokens), rbac.RequireOrg()}
	userOrLink := []gin.HandlerFunc{
		auth.RequireUserOrLink(h.Tokens, h.Links, auth.PurposeTranscription),
		rbac.RequireOrg(),
	}

	c := r.Group("/calls")
	{
		c.POST("", service, h.CreateCall)
		c.POST("/info", service, h.UploadCallInfo)
		c.GET("", with(user, h.ListCalls)...)
		c.GET("/:id/transcription", with(userOrLink, h.DownloadTranscription)...)
		c.GET("/:id/transcription-link", with(user, h.TranscriptionLink)...)
	}

	cl := r.Group("/clients", user...)
	{
		cl.GET("", h.ListClients)
		cl.GET("/:id", h.GetClient)
	}

	t := r.Group("/auth-tokens", user...)
	{
		t.POST("", h.CreateAuthToken)
		t.GET("", h.ListAuthTokens)
		t.DELETE("/:id", h.DeleteAuthToken)
		t.PATCH("/:id/revoke", h.RevokeAuthToken)
	}

	r.GET("/storage/stats", service, h.StorageStats)
}

func with(chain []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(chain)+1)
	return append(append(out, chain...), h)
}
