package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/kudos/internal/auth"
	"github.com/mmynk/kudos/internal/middleware"
	"github.com/mmynk/kudos/internal/profile"
)

// AccountService implements kudos.v1.AccountService.
// Tokens are issued by the identity provider; SignIn only syncs the profile.
type AccountService struct {
	directory *profile.Directory
	identity  auth.Identity
	logger    *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(directory *profile.Directory, identity auth.Identity, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{directory: directory, identity: identity, logger: logger}
}

// Handler returns the path prefix and handler serving every AccountService procedure.
func (s *AccountService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(AccountServiceSignInProcedure, connect.NewUnaryHandler(AccountServiceSignInProcedure, s.SignIn, opts...))
	mux.Handle(AccountServiceGetProfileProcedure, connect.NewUnaryHandler(AccountServiceGetProfileProcedure, s.GetProfile, opts...))
	mux.Handle(AccountServiceUpdateProfileProcedure, connect.NewUnaryHandler(AccountServiceUpdateProfileProcedure, s.UpdateProfile, opts...))
	mux.Handle(AccountServiceGetStatsProcedure, connect.NewUnaryHandler(AccountServiceGetStatsProcedure, s.GetStats, opts...))
	return "/" + AccountServiceName + "/", mux
}

// SignIn creates or refreshes the caller's profile from the token claims.
func (s *AccountService) SignIn(ctx context.Context, req *connect.Request[SignInRequest]) (*connect.Response[SignInResponse], error) {
	if _, err := callerID(ctx, s.identity); err != nil {
		return nil, err
	}

	user, err := s.directory.SyncFromIdentity(ctx, middleware.GetClaims(ctx))
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	s.logger.Info("User signed in", "user_id", user.ID)
	return connect.NewResponse(&SignInResponse{User: toUser(user, true)}), nil
}

// GetProfile returns a profile. The email is only included for the caller's own.
func (s *AccountService) GetProfile(ctx context.Context, req *connect.Request[GetProfileRequest]) (*connect.Response[GetProfileResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	target := req.Msg.UserID
	if target == "" {
		target = userID
	}
	user, err := s.directory.Get(ctx, target)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&GetProfileResponse{User: toUser(user, target == userID)}), nil
}

// UpdateProfile edits the caller's name and avatar.
func (s *AccountService) UpdateProfile(ctx context.Context, req *connect.Request[UpdateProfileRequest]) (*connect.Response[UpdateProfileResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	user, err := s.directory.UpdateProfile(ctx, userID, req.Msg.Name, req.Msg.AvatarURL)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&UpdateProfileResponse{User: toUser(user, true)}), nil
}

// GetStats returns praise counts for a user, the caller by default.
func (s *AccountService) GetStats(ctx context.Context, req *connect.Request[GetStatsRequest]) (*connect.Response[GetStatsResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	target := req.Msg.UserID
	if target == "" {
		target = userID
	}
	stats, err := s.directory.Stats(ctx, target)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&GetStatsResponse{Sent: stats.Sent, Received: stats.Received}), nil
}
