package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/securevoting/backend/internal/application/ledger"
	"github.com/securevoting/backend/internal/application/voter"
	"github.com/securevoting/backend/internal/config"
	"github.com/securevoting/backend/internal/transport/http/handler"
	appmiddleware "github.com/securevoting/backend/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Sessions)

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	voterSvc := voter.NewService(voter.ServiceDeps{
		Store:    deps.Voters,
		OTP:      deps.OTP,
		Sessions: deps.Sessions,
		Mailer:   deps.Mailer,
	})
	ledgerSvc := ledger.NewService(ledger.ServiceDeps{
		Votes:      deps.Votes,
		Voters:     deps.Voters,
		Sessions:   deps.Sessions,
		Archive:    deps.Archive,
		SMSSender:  deps.SMSSender,
		Candidates: deps.Candidates,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(voterSvc, deps.Sessions)
	voterH := handler.NewVoterHandler(voterSvc)
	voteH := handler.NewVoteHandler(ledgerSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/otp/send", authH.SendOTP)
		r.With(sensitiveRL.Limit).Post("/auth/otp/verify", authH.VerifyOTP)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)

		// Anyone holding a receipt can verify it; results are public.
		r.Get("/candidates", voteH.Candidates)
		r.Get("/votes/receipt/{receiptId}", voteH.Receipt)
		r.Get("/votes/tally", voteH.Tally)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/auth/logout", authH.Logout)
			r.Get("/voters/me", voterH.Me)
			r.Post("/votes", voteH.Cast)
			r.Get("/votes/status", voteH.Status)
			r.Post("/ledger/export", voteH.Export)
		})
	})

	return r
}
