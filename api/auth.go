package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

type actorKey struct{}

// WithActor returns a context carrying the authenticated actor.
func WithActor(ctx context.Context, actor timeoff.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by Authenticate.
func ActorFrom(ctx context.Context) (timeoff.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(timeoff.Actor)
	return actor, ok
}

// Authenticate resolves HTTP Basic credentials (employee ID and secret) to an
// actor. Requests without valid credentials stop here with 401.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="leave"`)
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}

		actor, err := h.Service.Authenticate(r.Context(), generic.EntityID(id), secret)
		if err != nil {
			if statusFor(err) == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", `Basic realm="leave"`)
			}
			h.fail(w, r, "Authentication failed", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// AuthorizeEvidence lets a stored document through only to its owner or an
// administrator. It runs after Authenticate.
func (h *Handler) AuthorizeEvidence(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		if err := h.Service.AuthorizeEvidence(r.Context(), actor(r), key); err != nil {
			h.fail(w, r, "Cannot read evidence", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actor returns the caller. Routes behind Authenticate always have one.
func actor(r *http.Request) timeoff.Actor {
	a, _ := ActorFrom(r.Context())
	return a
}
