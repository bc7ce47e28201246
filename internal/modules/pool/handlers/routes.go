package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all pool routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/pool", func(r chi.Router) {
		// Read model
		r.Get("/status", h.HandleStatus)
		r.Get("/balance/{holder}", h.HandleBalance)
		r.Get("/config", h.HandleGetConfig)

		// Capital flow
		r.Post("/deposit", h.HandleDeposit)
		r.Post("/mint", h.HandleMint)
		r.Post("/withdraw", h.HandleWithdraw)
		r.Post("/redeem", h.HandleRedeem)

		// Keeper operations
		r.Post("/harvest", h.HandleHarvest)
		r.Post("/allocate", h.HandleAllocate)
		r.Post("/rebalance", h.HandleRebalance)
		r.Get("/rebalance/check", h.HandleRebalanceCheck)

		// Emergency path
		r.Post("/pause", h.HandlePause)
		r.Post("/unpause", h.HandleUnpause)
		r.Post("/emergency-drain", h.HandleEmergencyDrain)
		r.Post("/sync-idle", h.HandleSyncIdle)

		// Strategy registry
		r.Get("/strategies", h.HandleGetStrategies)
		r.Post("/strategies", h.HandleRegisterStrategy)
		r.Delete("/strategies/{name}", h.HandleRemoveStrategy)
	})
}
