// Package apiv1 implements the partner-facing HTTP API.
package apiv1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"universal-loyalty-ledger/internal/infra/logging"
	"universal-loyalty-ledger/internal/onboarding"
	"universal-loyalty-ledger/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Limiter throttles claim-code guesses. The Redis-backed implementation
// fails open.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ArtifactCache holds rendered onboarding codes so repeated fetches skip the
// QR encoder.
type ArtifactCache interface {
	Get(ctx context.Context, universalID, format string) (string, bool)
	Put(ctx context.Context, universalID, format, rendered string)
}

// Server wires the loyalty use cases to the partner API routes.
type Server struct {
	partnerUC  usecase.PartnerUseCase
	identityUC usecase.IdentityUseCase
	ledgerUC   usecase.LedgerUseCase
	shadowUC   usecase.ShadowUseCase
	generator  *onboarding.Generator
	limiter    Limiter
	artifacts  ArtifactCache
	claimRate  int
	log        *zerolog.Logger
}

type ServerOptions struct {
	Limiter       Limiter
	ArtifactCache ArtifactCache
	// ClaimAttemptsPerMinute bounds validate/activate calls per partner.
	// Zero disables throttling.
	ClaimAttemptsPerMinute int
}

func NewServer(
	partnerUC usecase.PartnerUseCase,
	identityUC usecase.IdentityUseCase,
	ledgerUC usecase.LedgerUseCase,
	shadowUC usecase.ShadowUseCase,
	generator *onboarding.Generator,
	opts ServerOptions,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		partnerUC:  partnerUC,
		identityUC: identityUC,
		ledgerUC:   ledgerUC,
		shadowUC:   shadowUC,
		generator:  generator,
		limiter:    opts.Limiter,
		artifacts:  opts.ArtifactCache,
		claimRate:  opts.ClaimAttemptsPerMinute,
		log:        logger,
	}
}

// Router builds the chi route tree. Middleware from the api package is
// attached by the caller so tests can mount a bare router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Registration is the only open route; it returns the credential
		// used by everything below.
		r.Post("/partners", s.handleRegisterPartner)

		r.Group(func(r chi.Router) {
			r.Use(s.partnerAuth)

			r.Post("/customers/onboard", s.handleOnboard)
			r.Get("/customers/{externalID}", s.handleGetCustomer)
			r.Get("/customers/{externalID}/onboarding-code", s.handleOnboardingCode)

			r.Post("/points/award", s.handleAward)
			r.Post("/points/redeem", s.handleRedeem)
			r.Get("/points/balance", s.handleBalance)
			r.Get("/points/history", s.handleHistory)

			r.Post("/shadow-accounts", s.handleShadowAward)
			r.Post("/shadow-accounts/redeem", s.handleShadowRedeem)
			r.Get("/shadow-accounts", s.handleListShadowAccounts)

			r.Group(func(r chi.Router) {
				r.Use(s.claimThrottle)
				r.Post("/shadow-accounts/validate", s.handleValidateClaimCode)
				r.Post("/shadow-accounts/activate", s.handleActivate)
			})
		})
	})

	return r
}

type ctxKey int

const partnerIDKey ctxKey = 0

// partnerAuth checks X-Partner-ID plus a Bearer credential. Every failure
// mode reads the same to the caller.
func (s *Server) partnerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		partnerID := r.Header.Get("X-Partner-ID")
		auth := r.Header.Get("Authorization")
		credential := strings.TrimPrefix(auth, "Bearer ")
		if partnerID == "" || credential == auth || credential == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !s.partnerUC.ValidateCredential(r.Context(), partnerID, credential) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), partnerIDKey, partnerID)
		ctx = logging.WithPartnerID(ctx, partnerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) claimThrottle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.claimRate <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		partnerID, _ := r.Context().Value(partnerIDKey).(string)
		ok, err := s.limiter.Allow(r.Context(), claimAttemptKey(partnerID), s.claimRate, time.Minute)
		if err != nil {
			s.log.Warn().Err(err).Msg("claim throttle check failed")
		}
		if !ok {
			writeError(w, http.StatusTooManyRequests, "too many claim attempts")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimAttemptKey(partnerID string) string {
	return "claim_attempts:" + partnerID
}

func requestPartnerID(r *http.Request) string {
	id, _ := r.Context().Value(partnerIDKey).(string)
	return id
}
