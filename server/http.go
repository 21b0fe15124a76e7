package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/tetrisbattle/logger"
	"github.com/wfunc/tetrisbattle/models"
	"github.com/wfunc/tetrisbattle/services"
	"github.com/wfunc/tetrisbattle/versus"
)

type roomView struct {
	RoomID  string               `json:"room_id"`
	Status  versus.RoomStatus    `json:"status"`
	Players []string             `json:"players"`
	Scores  map[string]int       `json:"scores,omitempty"`
	States  []versus.PlayerState `json:"states,omitempty"`
}

func (s *GameServer) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog())

	// WebSocket 对战连接
	r.GET("/ws", func(c *gin.Context) {
		s.handleWebSocket(c.Writer, c.Request)
	})

	// --- ROOM ENDPOINTS ---
	r.GET("/rooms", s.listRoomsHandler)
	r.GET("/rooms/:id", s.roomHandler)

	// --- SCORE ENDPOINTS ---
	r.GET("/leaderboard", s.leaderboardHandler)
	r.POST("/scores", s.submitScoreHandler)
	r.GET("/players/:id/stats", s.playerStatsHandler)

	// --- OPS ---
	r.GET("/metrics", gin.WrapH(s.monitor.Handler()))
	r.GET("/debug/vars", gin.WrapH(s.monitor.ExpvarHandler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": s.sessionManager.Count(),
			"rooms":    len(s.roomManager.Rooms()),
		})
	})

	return r
}

// accessLog 用 zap 记录请求
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Debugw("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func (s *GameServer) listRoomsHandler(c *gin.Context) {
	rooms := s.roomManager.Rooms()
	out := make([]roomView, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomView{RoomID: r.ID, Status: r.GetStatus(), Players: r.PlayerIDs()})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}

func (s *GameServer) roomHandler(c *gin.Context) {
	r, ok := s.roomManager.GetRoom(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, roomView{
		RoomID:  r.ID,
		Status:  r.GetStatus(),
		Players: r.PlayerIDs(),
		Scores:  r.Scores(),
		States:  s.hub.States(r.ID),
	})
}

func (s *GameServer) leaderboardHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	scores, err := s.scores.Leaderboard(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

func (s *GameServer) submitScoreHandler(c *gin.Context) {
	var rec models.ScoreRecord
	if err := c.BindJSON(&rec); err != nil {
		return
	}
	saved, err := s.scores.Submit(rec)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrInvalidScore) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"score": saved})
}

func (s *GameServer) playerStatsHandler(c *gin.Context) {
	stats, err := s.scores.PlayerStats(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
