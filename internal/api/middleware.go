package api

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/tripcost/pkg/ledger"
)

// authenticate attaches the basic-auth user to the request context. Bad
// credentials are rejected; missing credentials leave the request anonymous.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || s.opts.Identity == nil {
			next.ServeHTTP(w, r)
			return
		}
		if err := s.opts.Identity.Verify(r.Context(), user, pass); err != nil {
			hlog.FromRequest(r).Warn().Str("user", user).Msg("Rejected credentials")
			unauthorized(w)
			return
		}
		ctx := ledger.WithActor(r.Context(), user)
		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("actor", user)
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ledger.ActorFrom(r.Context()) == "" {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="tripcost"`)
	writeError(w, http.StatusUnauthorized, "authentication required")
}
