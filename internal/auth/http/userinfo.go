package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
	"github.com/Dodge100/FairArena-sub008/pkg/httpx"
	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
)

// UserInfoHandler serves GET|POST /oauth/userinfo. Claims are filtered by
// the scopes of the presented access token, same as the ID token: profile
// unlocks the name claims, email unlocks the email pair, and claims without
// a value are omitted rather than sent as null.
type UserInfoHandler struct {
	Store store.Store
}

func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ClaimsFromContext(ctx)
	if claims == nil {
		ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.Store.Users().GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		ErrInvalidToken.WriteError(w)
		return
	}
	if err != nil {
		slogx.FromContext(ctx).ErrorContext(ctx, "userinfo lookup failed", "error", err)
		ErrServerError.WriteError(w)
		return
	}

	scopes := strings.Fields(claims.Scope)
	out := map[string]any{"sub": user.ID}

	for _, s := range scopes {
		switch s {
		case "profile":
			if user.Name != "" {
				out["name"] = user.Name
			}
			if user.GivenName != "" {
				out["given_name"] = user.GivenName
			}
			if user.FamilyName != "" {
				out["family_name"] = user.FamilyName
			}
			if user.Picture != "" {
				out["picture"] = user.Picture
			}
		case "email":
			if user.Email != "" {
				out["email"] = user.Email
				out["email_verified"] = user.EmailVerified
			}
		}
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, out)
}
