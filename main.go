package main

import (
	"context"
	"time"

	"github.com/cppla/quicktransfer/config"
	"github.com/cppla/quicktransfer/ledger"
	"github.com/cppla/quicktransfer/models"
	"github.com/cppla/quicktransfer/routes"
	"github.com/cppla/quicktransfer/store"
	"github.com/cppla/quicktransfer/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.TransferStat{})
	usage := ledger.New(db)

	// The store generates its process-lifetime encryption key here. Files
	// written by a previous run are unreadable from this point on; the
	// sweeper reclaims them once they age out.
	fs, err := store.NewFileStore(cfg.UploadDir, usage, utils.Sugar)
	if err != nil {
		utils.Sugar.Fatalf("init file store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fs.StartSweeper(ctx,
		time.Duration(cfg.SweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.RetentionHours)*time.Hour,
	)

	r := routes.SetupRouter(fs, usage)

	ip := utils.LocalIP()
	utils.Sugar.Infof("quick transfer server starting on port %s", cfg.AppPort)
	utils.Sugar.Infof("access from your phone: http://%s:%s", ip, cfg.AppPort)
	utils.Sugar.Infof("access from this computer: http://localhost:%s", cfg.AppPort)
	utils.Sugar.Infof("files are stored encrypted in %q and expire after %dh", cfg.UploadDir, cfg.RetentionHours)

	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
