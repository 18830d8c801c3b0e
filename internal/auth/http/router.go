package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Dodge100/FairArena-sub008/internal/auth/service"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
	"github.com/Dodge100/FairArena-sub008/pkg/httpx"
	"github.com/Dodge100/FairArena-sub008/pkg/jwtx"
	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	keys  *jwtx.KeySet

	TokenService     *service.TokenService
	AuthorizeService *service.AuthorizeService
	DeviceService    *service.DeviceService
	ScopeService     *service.ScopeService
	VerifierService  *service.VerifierService
	ClientAuth       *service.ClientAuthenticator
}

func NewRouter(issuer, buildVersion string, st store.Store, keys *jwtx.KeySet, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		keys:         keys,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ApplyRoutes wires every endpoint. Call after the service fields are set.
func (r *Router) ApplyRoutes() {
	requireUser := RequireUser(r.VerifierService)

	// Device endpoints get their own tighter limit on top of request
	// logging: the polling endpoint is the abuse magnet of the flow.
	deviceLimit := httpx.RateLimitMiddleware(httpx.StrictLimit)

	r.Mux.Handle("POST /oauth/token", &TokenHandler{
		TokenService: r.TokenService,
		ClientAuth:   r.ClientAuth,
	})
	r.Mux.Handle("POST /oauth/authorize", requireUser(&AuthorizeHandler{
		AuthorizeService: r.AuthorizeService,
	}))
	r.Mux.Handle("POST /oauth/device/authorize", deviceLimit(&DeviceAuthorizationHandler{
		DeviceService: r.DeviceService,
		ClientAuth:    r.ClientAuth,
	}))
	r.Mux.Handle("GET /oauth/device/verify", requireUser(&DeviceVerificationHandler{
		DeviceService: r.DeviceService,
	}))
	r.Mux.Handle("POST /oauth/device/verify", requireUser(&DeviceVerificationHandler{
		DeviceService: r.DeviceService,
	}))
	r.Mux.Handle("POST /oauth/introspect", &IntrospectHandler{
		Verifier:   r.VerifierService,
		ClientAuth: r.ClientAuth,
	})
	r.Mux.Handle("POST /oauth/revoke", &RevokeHandler{
		TokenService: r.TokenService,
		ClientAuth:   r.ClientAuth,
	})
	r.Mux.Handle("GET /oauth/userinfo", requireUser(&UserInfoHandler{Store: r.store}))
	r.Mux.Handle("POST /oauth/userinfo", requireUser(&UserInfoHandler{Store: r.store}))

	r.Mux.Handle("GET /.well-known/openid-configuration", &DiscoveryHandler{Issuer: r.issuer})
	r.Mux.Handle("GET /.well-known/jwks.json", &JWKSHandler{Keys: r.keys})

	r.Mux.Handle("GET /livez", &LivezHandler{Version: r.buildVersion, StartTime: r.startTime})
	r.Mux.Handle("GET /readyz", &ReadyzHandler{Store: r.store, Keys: r.keys})
}

// ServeHTTP applies the global middleware chain around the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}
