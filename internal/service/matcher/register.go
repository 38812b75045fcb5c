package matcher

import (
	"google.golang.org/grpc"

	api "github.com/oggyb/swipe-engine/internal/api/matcher"
	"github.com/oggyb/swipe-engine/internal/app"
)

// Registrar ties the Matcher service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Matcher service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Matcher service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	api.RegisterMatcherServiceServer(s, NewMatcherService(r.appCtx))
}
