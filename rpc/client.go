package rpc

import (
	"context"

	"github.com/wfunc/tetrisbattle/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls the leaderboard service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for addr. Extra options are appended after the
// defaults, which use plaintext and the JSON codec.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) SubmitScore(ctx context.Context, rec models.ScoreRecord) (models.ScoreRecord, error) {
	out := new(SubmitScoreReply)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/SubmitScore", &SubmitScoreRequest{Record: rec}, out)
	return out.Record, err
}

func (c *Client) TopScores(ctx context.Context, limit int) ([]models.ScoreRecord, error) {
	out := new(TopScoresReply)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/TopScores", &TopScoresRequest{Limit: limit}, out)
	return out.Scores, err
}

func (c *Client) PlayerStats(ctx context.Context, playerID string) (models.PlayerStats, error) {
	out := new(PlayerStatsReply)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/PlayerStats", &PlayerStatsRequest{PlayerID: playerID}, out)
	return out.Stats, err
}

func (c *Client) Close() error {
	return c.conn.Close()
}
