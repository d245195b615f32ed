package context

import (
	"context"

	"github.com/julienschmidt/httprouter"
	"taskboard/internal/platform/authz"
)

type Key string

const (
	Claims Key = "claims"
	Actor  Key = "actor"
	Params Key = "params"
)

// ActorFrom returns the acting identity stored by the auth middleware. The
// zero Actor is returned on unauthenticated routes.
func ActorFrom(ctx context.Context) authz.Actor {
	actor, _ := ctx.Value(Actor).(authz.Actor)
	return actor
}

// Param returns the named route parameter, or "" outside a routed request.
func Param(ctx context.Context, name string) string {
	ps, _ := ctx.Value(Params).(httprouter.Params)
	return ps.ByName(name)
}
