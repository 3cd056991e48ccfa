package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"adBuilder/internal/api/middleware"
	"adBuilder/internal/config"
	"adBuilder/internal/database"
	"adBuilder/internal/session"
)

// objectStore 是 handler 用到的 MinIO 客户端方法集合。
type objectStore interface {
	exportObjects
	assetStorage
	prefixDeleter
}

// Dependencies 汇总路由需要的外部组件。
type Dependencies struct {
	Repo     *database.Repository
	Sessions *session.Manager
	Queue    taskEnqueuer
	Redis    interface {
		redisRateCounter
		redisSubscriber
	}
	Storage  objectStore
	Notifier adNotifier
	Logger   *slog.Logger
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, cfg *config.Config, deps Dependencies) {
	adHandler := NewAdHandler(deps.Repo, deps.Sessions, deps.Storage)
	editHandler := NewEditHandler(deps.Sessions)
	blockHandler := NewBlockHandler(deps.Repo, deps.Sessions)
	priceHandler := NewPriceHandler(deps.Repo, deps.Sessions)
	workflowHandler := NewWorkflowHandler(deps.Repo, deps.Sessions, deps.Notifier)
	exportHandler := NewExportHandler(deps.Repo, deps.Sessions, deps.Queue, deps.Redis, deps.Storage, cfg.API.ExportsPerHour)
	templateHandler := NewTemplateHandler(deps.Repo, deps.Sessions, deps.Queue, deps.Storage)
	assetHandler := NewAssetHandler(deps.Repo, deps.Storage, deps.Logger, cfg.Clamd.Addr)
	wsHandler := NewWsHandler(deps.Redis, deps.Logger, cfg.API.AllowedOrigins())

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		ads := v1.Group("/ads")
		{
			ads.GET("", adHandler.ListAds)
			ads.POST("", adHandler.CreateAd)
			ads.GET("/:id", adHandler.GetAd)
			ads.PATCH("/:id", adHandler.UpdateDetails)
			ads.DELETE("/:id", adHandler.DeleteAd)
			ads.POST("/:id/save", adHandler.Save)
			ads.GET("/:id/render", adHandler.Render)
			ads.GET("/:id/history", adHandler.History)
			ads.POST("/:id/undo", adHandler.Undo)
			ads.POST("/:id/redo", adHandler.Redo)

			ads.POST("/:id/placements", editHandler.PlaceBlock)
			ads.POST("/:id/placements/:pid/move", editHandler.MoveBlock)
			ads.PUT("/:id/placements/:pid/resize", editHandler.ResizeBlock)
			ads.POST("/:id/placements/:pid/fit", editHandler.FitToZone)
			ads.PUT("/:id/placements/:pid/zindex", editHandler.SetZIndex)
			ads.PATCH("/:id/placements/:pid/overrides", editHandler.UpdateOverrides)
			ads.DELETE("/:id/placements/:pid", editHandler.RemoveBlock)

			ads.POST("/:id/sections", editHandler.AddSection)
			ads.POST("/:id/sections/:sectionId/reorder", editHandler.ReorderSection)
			ads.POST("/:id/sections/:sectionId/pages", editHandler.AddPage)
			ads.DELETE("/:id/pages/:pageId", editHandler.DeletePage)
			ads.POST("/:id/pages/:pageId/reorder", editHandler.ReorderPage)
			ads.PUT("/:id/pages/:pageId/template", editHandler.SwapTemplate)

			ads.GET("/:id/block-data", blockHandler.ListBlocks)
			ads.POST("/:id/block-data", blockHandler.CreateBlock)
			ads.POST("/:id/block-data/import", blockHandler.ImportFeed)
			ads.PUT("/:id/block-data/:blockId", blockHandler.ReplaceBlock)

			ads.GET("/:id/prices", priceHandler.ListPrices)
			ads.GET("/:id/prices/:upc", priceHandler.GetPrice)
			ads.PUT("/:id/prices/:region/:upc", priceHandler.SetRegionalPrice)
			ads.PUT("/:id/region", priceHandler.SetRegion)

			ads.POST("/:id/workflow/:action", workflowHandler.Transition)
			ads.GET("/:id/versions", workflowHandler.ListVersions)
			ads.GET("/:id/versions/:version", workflowHandler.GetVersion)
			ads.GET("/:id/audit", workflowHandler.ListAudit)

			ads.POST("/:id/export", exportHandler.CreateExport)
			ads.GET("/:id/exports", exportHandler.ListExports)
			ads.GET("/:id/exports/:exportId", exportHandler.GetExport)
			ads.GET("/:id/exports/:exportId/link", exportHandler.GetDownloadLink)
		}

		templates := v1.Group("/templates")
		{
			templates.GET("", templateHandler.ListTemplates)
			templates.POST("", templateHandler.CreateTemplate)
			templates.GET("/:id", templateHandler.GetTemplate)
			templates.PUT("/:id", templateHandler.UpdateTemplate)
			templates.DELETE("/:id", templateHandler.DeleteTemplate)
			templates.POST("/:id/preview", templateHandler.RequestPreview)
		}

		assets := v1.Group("/assets")
		{
			assets.POST("/upload", assetHandler.UploadAsset)
			assets.GET("/view", assetHandler.GetAssetURL)
		}

		internal := v1.Group("/internal")
		internal.Use(middleware.InternalSecretMiddleware(cfg.API.InternalSecret))
		{
			internal.GET("/ads/:id/print", exportHandler.GetPrintData)
		}
	}
}
