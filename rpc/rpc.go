package rpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/wfunc/tetrisbattle/logger"
	"github.com/wfunc/tetrisbattle/models"
	"github.com/wfunc/tetrisbattle/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "tetrisbattle.Leaderboard"

type SubmitScoreRequest struct {
	Record models.ScoreRecord `json:"record"`
}

type SubmitScoreReply struct {
	Record models.ScoreRecord `json:"record"`
}

type TopScoresRequest struct {
	Limit int `json:"limit"`
}

type TopScoresReply struct {
	Scores []models.ScoreRecord `json:"scores"`
}

type PlayerStatsRequest struct {
	PlayerID string `json:"player_id"`
}

type PlayerStatsReply struct {
	Stats models.PlayerStats `json:"stats"`
}

// LeaderboardServer is the server side of the leaderboard service.
type LeaderboardServer interface {
	SubmitScore(ctx context.Context, in *SubmitScoreRequest) (*SubmitScoreReply, error)
	TopScores(ctx context.Context, in *TopScoresRequest) (*TopScoresReply, error)
	PlayerStats(ctx context.Context, in *PlayerStatsRequest) (*PlayerStatsReply, error)
}

// LeaderboardService exposes services.ScoreService over gRPC.
type LeaderboardService struct {
	scores *services.ScoreService
}

func NewLeaderboardService(scores *services.ScoreService) *LeaderboardService {
	return &LeaderboardService{scores: scores}
}

func (s *LeaderboardService) SubmitScore(_ context.Context, in *SubmitScoreRequest) (*SubmitScoreReply, error) {
	rec, err := s.scores.Submit(in.Record)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SubmitScoreReply{Record: rec}, nil
}

func (s *LeaderboardService) TopScores(_ context.Context, in *TopScoresRequest) (*TopScoresReply, error) {
	scores, err := s.scores.Leaderboard(in.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TopScoresReply{Scores: scores}, nil
}

func (s *LeaderboardService) PlayerStats(_ context.Context, in *PlayerStatsRequest) (*PlayerStatsReply, error) {
	if in.PlayerID == "" {
		return nil, status.Error(codes.InvalidArgument, "player_id is required")
	}
	stats, err := s.scores.PlayerStats(in.PlayerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PlayerStatsReply{Stats: stats}, nil
}

func toStatus(err error) error {
	if errors.Is(err, services.ErrInvalidScore) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func submitScoreHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SubmitScoreRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LeaderboardServer).SubmitScore(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SubmitScore"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LeaderboardServer).SubmitScore(ctx, req.(*SubmitScoreRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func topScoresHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TopScoresRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LeaderboardServer).TopScores(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/TopScores"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LeaderboardServer).TopScores(ctx, req.(*TopScoresRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func playerStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PlayerStatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LeaderboardServer).PlayerStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/PlayerStats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LeaderboardServer).PlayerStats(ctx, req.(*PlayerStatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var leaderboardServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LeaderboardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitScore", Handler: submitScoreHandler},
		{MethodName: "TopScores", Handler: topScoresHandler},
		{MethodName: "PlayerStats", Handler: playerStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "leaderboard",
}

// RegisterLeaderboardServer attaches the service to a gRPC server.
func RegisterLeaderboardServer(s grpc.ServiceRegistrar, srv LeaderboardServer) {
	s.RegisterService(&leaderboardServiceDesc, srv)
}

// logInterceptor logs every call with its latency.
func logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		logger.Log.Warnf("rpc %s failed after %v: %v", info.FullMethod, time.Since(start), err)
	} else {
		logger.Log.Debugf("rpc %s ok in %v", info.FullMethod, time.Since(start))
	}
	return resp, err
}

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	grpc     *grpc.Server
}

// NewServer listens on addr and registers the leaderboard service.
func NewServer(addr string, svc LeaderboardServer) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewServerWithListener(listener, svc), nil
}

func NewServerWithListener(listener net.Listener, svc LeaderboardServer) *Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(logInterceptor))
	RegisterLeaderboardServer(gs, svc)
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		grpc:     gs,
	}
}

// Start blocks serving RPC requests until Stop.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	if err := s.grpc.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Log.Errorf("RPC server error: %v", err)
	}
}

// Stop drains in-flight calls and closes the listener.
func (s *Server) Stop() {
	if s.grpc != nil {
		logger.Log.Info("Stopping RPC server.")
		s.grpc.GracefulStop()
	}
}
