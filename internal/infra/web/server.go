package web

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"universal-loyalty-ledger/internal/usecase"

	"github.com/rs/zerolog"
)

// Server is the back-office API: operator login plus read/administer views
// over partners and shadow accounts. It listens on its own port, separate
// from the partner API.
type Server struct {
	statsUC   usecase.StatsUseCase
	partnerUC usecase.PartnerUseCase
	shadowUC  usecase.ShadowUseCase
	auth      *AuthManager
	apiKey    string
	log       *zerolog.Logger
}

func NewServer(
	statsUC usecase.StatsUseCase,
	partnerUC usecase.PartnerUseCase,
	shadowUC usecase.ShadowUseCase,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		statsUC:   statsUC,
		partnerUC: partnerUC,
		shadowUC:  shadowUC,
		auth:      auth,
		apiKey:    apiKey,
		log:       logger,
	}
}

// RegisterRoutes sets up the routing for the admin API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/admin/v1/login", http.HandlerFunc(s.loginHandler))
	mux.Handle("/admin/v1/logout", http.HandlerFunc(s.logoutHandler))

	mux.Handle("/admin/v1/stats", s.sessionMiddleware(http.HandlerFunc(s.statsHandler)))

	partnersRouter := s.sessionMiddleware(s.partnersRouter())
	mux.Handle("/admin/v1/partners", partnersRouter)
	mux.Handle("/admin/v1/partners/", partnersRouter)
}

// loginHandler exchanges the configured operator key for a short-lived JWT
// session cookie.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.apiKey == "" {
		s.log.Error().Msg("admin API key is not configured")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	key := r.Header.Get("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if _, err := s.auth.Mint(w); err != nil {
		s.log.Error().Err(err).Msg("failed to mint admin session")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// sessionMiddleware guards everything behind a valid admin session, whether
// presented as a cookie or a bearer token.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// partnersRouter acts as a sub-router for /admin/v1/partners
func (s *Server) partnersRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/admin/v1/partners")
		path = strings.Trim(path, "/")

		if path == "" { // Path is /admin/v1/partners
			switch r.Method {
			case http.MethodGet:
				s.partnersListHandler(w, r)
			case http.MethodPost:
				s.partnerRegisterHandler(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		// Path is /admin/v1/partners/{id} or /admin/v1/partners/{id}/<action>
		parts := strings.SplitN(path, "/", 2)
		id := parts[0]
		action := ""
		if len(parts) == 2 {
			action = parts[1]
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			s.partnerGetHandler(w, r, id)
		case action == "deactivate" && r.Method == http.MethodPost:
			s.partnerDeactivateHandler(w, r, id)
		case action == "deep-link" && r.Method == http.MethodPut:
			s.partnerDeepLinkHandler(w, r, id)
		case action == "shadow-accounts" && r.Method == http.MethodGet:
			s.partnerShadowAccountsHandler(w, r, id)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	})
}
