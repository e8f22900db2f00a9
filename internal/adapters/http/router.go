// Package http is the local control API the presentation layer talks
// to. It only reads snapshots and forwards user actions; all state
// lives in the session controller.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/app/session"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
)

func SetupRouter(cfg *config.Config, ctrl *session.Controller, notices *NoticeLog) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Int("port", cfg.APIPort).Msg("router setup")

	api := r.Group("/api")

	api.GET("/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctrl.Snapshot())
	})
	api.GET("/peers", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctrl.Snapshot().Peers)
	})
	api.GET("/waiting", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctrl.Snapshot().Waiting)
	})
	api.GET("/notices", func(c *gin.Context) {
		c.JSON(http.StatusOK, notices.Snapshot())
	})

	actions := api.Group("/actions")
	actions.POST("/toggle-audio", action(func() error { return ctrl.ToggleAudio() }))
	actions.POST("/toggle-video", action(func() error { return ctrl.ToggleVideo() }))
	actions.POST("/raise-hand", action(func() error { return ctrl.ToggleHandRaise() }))
	actions.POST("/screen-share/start", func(c *gin.Context) {
		var p struct {
			Overlay bool `json:"overlay"`
		}
		_ = c.ShouldBindJSON(&p)
		respond(c, ctrl.StartScreenShare(p.Overlay))
	})
	actions.POST("/screen-share/stop", action(func() error { return ctrl.StopScreenShare() }))
	actions.POST("/leave", func(c *gin.Context) {
		ctrl.Leave()
		c.Status(http.StatusNoContent)
	})

	api.POST("/chat", func(c *gin.Context) {
		var p struct {
			Content string `json:"content" binding:"required"`
		}
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
			return
		}
		respond(c, ctrl.SendChat(p.Content))
	})
	api.POST("/reaction", func(c *gin.Context) {
		var p struct {
			Emoji string `json:"emoji" binding:"required"`
		}
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
			return
		}
		respond(c, ctrl.SendReaction(p.Emoji))
	})

	api.POST("/admit", peerAction(func(id domain.PeerID) error { return ctrl.Admit(id) }))
	api.POST("/reject", peerAction(func(id domain.PeerID) error { return ctrl.Reject(id) }))

	mod := api.Group("/moderation")
	mod.POST("/mute", peerAction(func(id domain.PeerID) error {
		return ctrl.Moderation().MuteParticipant(id, "")
	}))
	mod.POST("/disable-video", peerAction(func(id domain.PeerID) error {
		return ctrl.Moderation().DisableParticipantVideo(id, "")
	}))
	mod.POST("/remove", peerAction(func(id domain.PeerID) error {
		return ctrl.Moderation().RemoveParticipant(id, "")
	}))
	mod.POST("/mute-all", action(func() error { return ctrl.Moderation().MuteAll("") }))
	mod.POST("/disable-all-videos", action(func() error { return ctrl.Moderation().DisableAllVideos("") }))

	api.POST("/rate", scoreAction(ctrl.Moderation().Rate))
	api.POST("/award", scoreAction(ctrl.Moderation().Award))

	return r
}

func action(fn func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, fn())
	}
}

func peerAction(fn func(id domain.PeerID) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p struct {
			PeerID domain.PeerID `json:"peerId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
			return
		}
		respond(c, fn(p.PeerID))
	}
}

type scoreFn func(ctx context.Context, userID domain.UserID, reason string, points int) error

func scoreAction(fn scoreFn) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p struct {
			UserID domain.UserID `json:"userId" binding:"required"`
			Reason string        `json:"reason"`
			Points int           `json:"points"`
		}
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
			return
		}
		respond(c, fn(c.Request.Context(), p.UserID, p.Reason, p.Points))
	}
}

func respond(c *gin.Context, err error) {
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
