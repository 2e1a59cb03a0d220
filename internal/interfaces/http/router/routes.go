package router

import (
	"github.com/firesafe/ledger/internal/interfaces/http/handler"
	"github.com/firesafe/ledger/internal/interfaces/http/middleware"
)

// LedgerRoutes mounts the ledger endpoints under /ledger. Settle and return
// accept an Idempotency-Key header.
func LedgerRoutes(h *handler.LedgerHandler) *DomainGroup {
	g := NewDomainGroup("ledger", "/ledger")
	g.Use(middleware.IdempotencyKey())

	g.POST("/batches", h.CreateBatch)
	g.POST("/sales/settle", h.Settle)
	g.GET("/sales/:saleLineId/trail", h.GetTrail)
	g.POST("/returns", h.Return)
	g.POST("/returns/:returnLineId/cancel", h.CancelReturn)
	g.POST("/transfers", h.Transfer)
	g.GET("/products/:id/balances", h.GetBalances)
	g.GET("/products/:id/batches", h.ListBatches)
	g.POST("/products/:id/reconcile", h.Reconcile)
	g.GET("/journal", h.ListJournal)
	g.GET("/snapshots", h.GetSnapshot)
	g.POST("/snapshots", h.TakeSnapshot)
	g.GET("/snapshots/export", h.ExportSnapshot)
	g.GET("/snapshots/archive", h.GetSnapshotArchive)
	g.POST("/snapshots/archive", h.ArchiveSnapshot)
	return g
}

// CostingRoutes mounts the costing session endpoints under /costing
func CostingRoutes(h *handler.CostingHandler) *DomainGroup {
	g := NewDomainGroup("costing", "/costing")

	g.GET("/sessions", h.ListSessions)
	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions/:id", h.GetSession)
	g.PUT("/sessions/:id", h.UpdateSession)
	g.POST("/sessions/:id/recalculate", h.Recalculate)
	g.POST("/sessions/:id/finalize", h.Finalize)
	return g
}

// SystemRoutes mounts build info and manual job runs under /system
func SystemRoutes(sys *handler.SystemHandler, jobs *handler.JobsHandler) *DomainGroup {
	g := NewDomainGroup("system", "/system")
	g.GET("/info", sys.GetSystemInfo)
	if jobs != nil {
		g.GET("/jobs", jobs.ListJobs)
		g.POST("/jobs/:name/run", jobs.RunJob)
	}
	return g
}
