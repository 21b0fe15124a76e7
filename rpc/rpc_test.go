package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tetrisbattle/models"
	"github.com/wfunc/tetrisbattle/persistence"
	"github.com/wfunc/tetrisbattle/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	svc := NewLeaderboardService(services.NewScoreService(persistence.NewMemoryStore()))
	srv := NewServerWithListener(lis, svc)
	go srv.Start()
	t.Cleanup(srv.Stop)

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLeaderboard(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec, err := c.SubmitScore(ctx, models.ScoreRecord{PlayerID: "alice", Score: 800, Lines: 4})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.Equal(t, models.ModeSolo, rec.Mode)

	_, err = c.SubmitScore(ctx, models.ScoreRecord{PlayerID: "bob", Score: 1200})
	require.NoError(t, err)

	top, err := c.TopScores(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].PlayerID)

	stats, err := c.PlayerStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Equal(t, 800, stats.BestScore)
}

func TestLeaderboard_Errors(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.SubmitScore(ctx, models.ScoreRecord{PlayerID: "", Score: 10})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.PlayerStats(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
