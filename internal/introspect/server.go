package introspect

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kelvinlab/fleetsup/internal/supervisor"
)

// Server is the optional operability HTTP surface over a running
// Supervisor. It is additive: nothing in internal/supervisor depends on
// it, and it is only reachable when an embedder chooses to start it —
// mirroring the teacher's ghost.ServiceConfig.AdminListenAddr opt-in.
type Server struct {
	sup       *supervisor.Supervisor
	router    *gin.Engine
	startedAt time.Time
}

// NewServer builds a Server around sup. corsOrigins follows the
// teacher's ghost.Appear CORS config shape.
func NewServer(sup *supervisor.Supervisor, log zerolog.Logger, corsOrigins []string) *Server {
	RegisterMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins,
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{sup: sup, router: r, startedAt: time.Now()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.startedAt).String(),
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		all := s.sup.GetAllProcesses()
		for _, p := range all {
			if p.State != supervisor.Running && p.State != supervisor.Created {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "process": p.Name, "state": p.State.String()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ready": true})
	})

	s.router.GET("/processes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"processes": s.sup.GetAllProcesses()})
	})

	s.router.POST("/processes/:name/restart", func(c *gin.Context) {
		name := c.Param("name")
		if err := s.sup.RestartProcess(name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "process": name})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Run blocks serving on addr until the process is terminated or the
// listener fails. Intended to run in its own goroutine alongside
// Supervisor.Run.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
