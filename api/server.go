// Package api exposes pool.Manager over HTTP (echo) and a websocket event
// feed (gorilla/websocket), adapted from the teacher's DAOServer/EventBus
// pairing but rebuilt standalone around pool.Manager since the teacher's
// core.Blockchain/base Server types are not part of this domain.
package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/bockstake/stakepool/pool"
)

// ServerConfig carries the HTTP server's own tunables, separate from
// pool.EngineConfig (which governs the accounting engine itself).
type ServerConfig struct {
	ListenAddr string
}

// Server is the HTTP+websocket front end for a pool.Manager.
type Server struct {
	cfg      ServerConfig
	manager  *pool.Manager
	eventBus *EventBus
	upgrader websocket.Upgrader
}

// APIError is the JSON error envelope returned on every non-2xx response.
type APIError struct {
	Error string `json:"error"`
}

// NewServer wires an HTTP server around manager and starts its EventBus.
func NewServer(cfg ServerConfig, manager *pool.Manager) *Server {
	eventBus := NewEventBus()
	manager.AddEmitter(eventBus)
	go eventBus.Run()

	return &Server{
		cfg:      cfg,
		manager:  manager,
		eventBus: eventBus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start registers every route and blocks serving HTTP.
func (s *Server) Start() error {
	e := echo.New()

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Access-Control-Allow-Origin", "*")
			c.Response().Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Response().Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	})

	e.POST("/pool", s.handleNewPool)
	e.GET("/pool/:poolId", s.handleGetPool)

	e.POST("/pool/:poolId/program", s.handleCreateIncentiveProgram)
	e.POST("/pool/:poolId/program/:idx/deactivate", s.handleDeactivateIncentiveProgram)
	e.POST("/pool/:poolId/program/:idx/activate", s.handleActivateIncentiveProgram)
	e.POST("/pool/:poolId/program/:idx/remove", s.handleRemoveIncentiveProgram)
	e.POST("/pool/:poolId/program/:idx/config", s.handleUpdateIncentiveConfig)
	e.POST("/pool/:poolId/unlock-countdown", s.handleUpdateUnlockCountdown)

	e.POST("/pool/:poolId/stake", s.handleStake)
	e.POST("/pool/:poolId/unsubscribe", s.handleUnsubscribe)
	e.POST("/pool/:poolId/unstake", s.handleUnstake)
	e.POST("/pool/:poolId/harvest", s.handleHarvest)

	e.GET("/pool/:poolId/ledger/:user", s.handleGetUserLedger)
	e.GET("/pool/:poolId/pending-harvest/:user/:tokenType", s.handlePendingHarvest)

	e.GET("/events", s.handleWebSocket)

	return e.Start(s.cfg.ListenAddr)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	s.eventBus.Register(conn)
	defer func() {
		s.eventBus.Unregister(conn)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	return nil
}
