// Package http serves the public onboarding landing page. The QR codes and
// onboarding links handed to customers point here; the page bridges from a
// scanned code into the partner's app via the stored deep link.
package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/usecase"
)

// Server wires the /onboard route to the identity use case.
type Server struct {
	identityUC usecase.IdentityUseCase
}

func NewServer(identityUC usecase.IdentityUseCase) *Server {
	return &Server{identityUC: identityUC}
}

// Register attaches handlers to the provided mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/onboard", s.handleOnboard)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	universalID := r.URL.Query().Get("id")
	if universalID == "" {
		s.renderHTML(w, http.StatusBadRequest, false, "missing onboarding id", "")
		return
	}

	c, err := s.identityUC.FindByUniversalID(ctx, universalID)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			s.renderHTML(w, http.StatusNotFound, false, "this onboarding link is not recognized", "")
			return
		}
		s.renderHTML(w, http.StatusServiceUnavailable, false, "temporarily unavailable, please retry", "")
		return
	}

	s.renderHTML(w, http.StatusOK, true, "you are enrolled. open the partner app to see your points.", c.DeepLink)
}

var page = template.Must(template.New("onboard").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>Loyalty {{if .OK}}Enrollment{{else}}Link{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
.small{font-size:12px;color:#666}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}fail{{end}}">{{if .OK}}Welcome{{else}}Something went wrong{{end}}</h2>
  <p>{{.Msg}}</p>
  {{if .DeepLink}}
    <a class="btn" href="{{.DeepLink}}">Open the app</a>
    <div class="small">If the button does nothing, install the partner app and scan your code again.</div>
  {{end}}
</div>
</body>
</html>`))

func (s *Server) renderHTML(w http.ResponseWriter, code int, ok bool, msg, deepLink string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = page.Execute(w, struct {
		OK       bool
		Msg      string
		DeepLink string
	}{
		OK:       ok,
		Msg:      msg,
		DeepLink: deepLink,
	})
}
