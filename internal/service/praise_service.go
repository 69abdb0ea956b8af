package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/kudos/internal/auth"
	"github.com/mmynk/kudos/internal/praise"
)

// PraiseService implements kudos.v1.PraiseService on top of praise.Engine.
type PraiseService struct {
	engine   *praise.Engine
	identity auth.Identity
	logger   *slog.Logger
}

// NewPraiseService creates a PraiseService.
func NewPraiseService(engine *praise.Engine, identity auth.Identity, logger *slog.Logger) *PraiseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PraiseService{engine: engine, identity: identity, logger: logger}
}

// Handler returns the path prefix and handler serving every PraiseService procedure.
func (s *PraiseService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(PraiseServiceCanPraiseProcedure, connect.NewUnaryHandler(PraiseServiceCanPraiseProcedure, s.CanPraise, opts...))
	mux.Handle(PraiseServiceSendPraiseProcedure, connect.NewUnaryHandler(PraiseServiceSendPraiseProcedure, s.SendPraise, opts...))
	mux.Handle(PraiseServiceDeletePraiseProcedure, connect.NewUnaryHandler(PraiseServiceDeletePraiseProcedure, s.DeletePraise, opts...))
	mux.Handle(PraiseServiceListGroupPraisesProcedure, connect.NewUnaryHandler(PraiseServiceListGroupPraisesProcedure, s.ListGroupPraises, opts...))
	mux.Handle(PraiseServiceListReceivedProcedure, connect.NewUnaryHandler(PraiseServiceListReceivedProcedure, s.ListReceived, opts...))
	mux.Handle(PraiseServiceListSentProcedure, connect.NewUnaryHandler(PraiseServiceListSentProcedure, s.ListSent, opts...))
	return "/" + PraiseServiceName + "/", mux
}

// CanPraise reports whether the caller may praise the receiver now.
func (s *PraiseService) CanPraise(ctx context.Context, req *connect.Request[CanPraiseRequest]) (*connect.Response[CanPraiseResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	d, err := s.engine.CanPraise(ctx, req.Msg.GroupID, userID, req.Msg.ReceiverID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	resp := &CanPraiseResponse{Allowed: d.Allowed}
	if !d.Allowed {
		next := d.NextAllowedAt
		resp.NextAllowedAt = &next
	}
	return connect.NewResponse(resp), nil
}

// SendPraise sends a praise from the caller.
func (s *PraiseService) SendPraise(ctx context.Context, req *connect.Request[SendPraiseRequest]) (*connect.Response[SendPraiseResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	p, err := s.engine.SendPraise(ctx, praise.SendParams{
		GroupID:     req.Msg.GroupID,
		SenderID:    userID,
		ReceiverID:  req.Msg.ReceiverID,
		Emoji:       req.Msg.Emoji,
		Message:     req.Msg.Message,
		IsPublic:    req.Msg.IsPublic,
		IsAnonymous: req.Msg.IsAnonymous,
	})
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&SendPraiseResponse{Praise: toPraise(p)}), nil
}

// DeletePraise deletes one of the caller's praises.
func (s *PraiseService) DeletePraise(ctx context.Context, req *connect.Request[DeletePraiseRequest]) (*connect.Response[DeletePraiseResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	if err := s.engine.DeletePraise(ctx, req.Msg.PraiseID, userID); err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&DeletePraiseResponse{}), nil
}

// ListGroupPraises lists the praises of a group visible to the caller.
func (s *PraiseService) ListGroupPraises(ctx context.Context, req *connect.Request[ListGroupPraisesRequest]) (*connect.Response[ListPraisesResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	entries, err := s.engine.ListGroupPraises(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&ListPraisesResponse{Praises: toPraiseEntries(entries)}), nil
}

// ListReceived lists the caller's received praises.
func (s *PraiseService) ListReceived(ctx context.Context, req *connect.Request[ListReceivedRequest]) (*connect.Response[ListPraisesResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	entries, err := s.engine.ListReceived(ctx, userID, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&ListPraisesResponse{Praises: toPraiseEntries(entries)}), nil
}

// ListSent lists the caller's sent praises.
func (s *PraiseService) ListSent(ctx context.Context, req *connect.Request[ListSentRequest]) (*connect.Response[ListPraisesResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	entries, err := s.engine.ListSent(ctx, userID, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&ListPraisesResponse{Praises: toPraiseEntries(entries)}), nil
}
