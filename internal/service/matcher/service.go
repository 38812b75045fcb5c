// Package matcher implements swipe.v1.MatcherService on top of the candidate,
// swipe and account engines.
package matcher

import (
	"context"

	api "github.com/oggyb/swipe-engine/internal/api/matcher"
	"github.com/oggyb/swipe-engine/internal/app"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/logger"
	"github.com/oggyb/swipe-engine/internal/server"
	"github.com/oggyb/swipe-engine/internal/service/accounts"
	"github.com/oggyb/swipe-engine/internal/service/candidates"
	"github.com/oggyb/swipe-engine/internal/service/swipe"
)

// Service implements the MatcherService gRPC API.
// Each method validates its request into typed values, calls one engine and
// maps engine errors to gRPC status codes.
type Service struct {
	appCtx     *app.AppContext
	candidates *candidates.Engine
	swipes     *swipe.Engine
	accounts   *accounts.Service
}

// NewMatcherService creates the service with engines built from AppContext.
func NewMatcherService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:     appCtx,
		candidates: candidates.NewEngine(appCtx),
		swipes:     swipe.NewEngine(appCtx),
		accounts:   accounts.NewService(appCtx),
	}
}

func caller(ctx context.Context) (string, error) {
	uid, ok := server.UIDFromContext(ctx)
	if !ok {
		return "", svcErr.Unauthenticated("no caller identity")
	}
	return uid, nil
}

// GenerateSwipeStack returns the next batch of people for the caller.
//
// Example:
//
//	svc.GenerateSwipeStack(ctx, &api.GenerateSwipeStackRequest{
//		SearchCriteria: &api.SearchCriteria{University: &uni},
//	})
func (s *Service) GenerateSwipeStack(ctx context.Context, req *api.GenerateSwipeStackRequest) (*api.GenerateSwipeStackResponse, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	criteria, err := CriteriaFrom(req.SearchCriteria)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	stack, err := s.candidates.Generate(ctx, uid, criteria)
	if err != nil {
		logger.FromContext(ctx).Error("GenerateSwipeStack failed", "uid", uid, "err", err)
		return nil, svcErr.Map(err)
	}

	resp := &api.GenerateSwipeStackResponse{Users: make([]api.SwipeUser, 0, len(stack))}
	for _, c := range stack {
		resp.Users = append(resp.Users, api.SwipeUser{UID: c.UID, Choice: string(c.Choice)})
	}
	return resp, nil
}

// RegisterSwipeChoices applies the caller's swipe batch and reports new
// matches and the remaining swipe balance.
func (s *Service) RegisterSwipeChoices(ctx context.Context, req *api.RegisterSwipeChoicesRequest) (*api.RegisterSwipeChoicesResponse, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	decisions, err := DecisionsFrom(req.Choices)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	res, err := s.swipes.Register(ctx, uid, decisions)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	matches := res.Matches
	if matches == nil {
		matches = []string{}
	}
	return &api.RegisterSwipeChoicesResponse{Matches: matches, SwipesLeft: res.SwipesLeft}, nil
}

// ReportUser hides the reported user from the caller and the caller from
// them.
func (s *Service) ReportUser(ctx context.Context, req *api.ReportUserRequest) (*api.ReportUserResponse, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	target, err := UIDFrom(req.UID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if err := s.accounts.Report(ctx, uid, target); err != nil {
		return nil, svcErr.Map(err)
	}
	return &api.ReportUserResponse{}, nil
}
