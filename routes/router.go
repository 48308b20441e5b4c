package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/quicktransfer/config"
	"github.com/cppla/quicktransfer/controllers"
	"github.com/cppla/quicktransfer/ledger"
	"github.com/cppla/quicktransfer/middleware"
	"github.com/cppla/quicktransfer/store"
	"github.com/cppla/quicktransfer/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(fs *store.FileStore, lg *ledger.Ledger) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap access log
	al, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.GinLogger(al))
		r.Use(utils.GinRecovery(al))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Delete-Token"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Delete-Token"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// PWA shell
	r.GET("/", func(c *gin.Context) {
		c.File("./static/index.html")
	})
	r.StaticFile("/manifest.json", "./static/manifest.json")
	r.StaticFile("/sw.js", "./static/sw.js")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	fileController := controllers.NewFileController(fs)
	statsController := controllers.NewStatsController(lg)

	r.GET("/files", fileController.List)
	r.GET("/download/:name", fileController.Download)
	r.GET("/preview/:name", fileController.Preview)
	r.GET("/stats", statsController.GetStats)

	mutating := r.Group("")
	mutating.Use(middleware.RateLimit())
	mutating.POST("/upload", fileController.Upload)
	mutating.DELETE("/delete/:name", fileController.Delete)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
