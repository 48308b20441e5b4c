package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/quicktransfer/ledger"
	"github.com/cppla/quicktransfer/utils"
)

// StatsController reports aggregate transfer usage.
type StatsController struct {
	ledger *ledger.Ledger
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(l *ledger.Ledger) *StatsController {
	return &StatsController{ledger: l}
}

// GetStats returns the on-demand usage aggregate.
func (s *StatsController) GetStats(ctx *gin.Context) {
	utils.Success(ctx, s.ledger.Aggregate())
}
