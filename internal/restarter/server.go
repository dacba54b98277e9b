package restarter

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ccheshirecat/swarmctl/internal/config"
	"github.com/ccheshirecat/swarmctl/internal/eventbus"
)

// RequestIDHeader echoes the id assigned to each request.
const RequestIDHeader = "X-Request-ID"

// Request is the JSON body every mutating endpoint accepts.
type Request struct {
	Password       string `json:"password"`
	PortBasedSSL   bool   `json:"port_based_ssl,omitempty"`
	CertBucketName string `json:"cert_bucket_name,omitempty"`
}

// Response is returned by successful jobs.
type Response struct {
	OK      bool   `json:"ok"`
	Job     string `json:"job,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type server struct {
	cfg    config.RestarterConfig
	exec   *Executor
	bus    eventbus.Bus
	logger *slog.Logger
}

// NewHandler builds the restarter HTTP API.
func NewHandler(cfg config.RestarterConfig, exec *Executor, bus eventbus.Bus, logger *slog.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(logger))
	r.Use(cors())

	s := &server{cfg: cfg, exec: exec, bus: bus, logger: logger}

	r.GET("/yo", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"hi": "hello"})
	})
	r.GET("/ws/output", s.followOutput)

	jobs := r.Group("/", s.requirePassword)
	{
		jobs.POST("restart", s.restart)
		jobs.POST("restart-super-admin", s.restartSuperAdmin)
		jobs.POST("renew-cert", s.renewCert)
		jobs.POST("upload-cert", s.uploadCert)
		jobs.POST("update-ssl-cert", s.updateSSLCert)
	}
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// requestLogger adapts slog to Gin's middleware interface.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		args := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.String("latency", latency.String()),
			slog.String("client_ip", c.ClientIP()),
			slog.String("request_id", c.GetString("request_id")),
		}
		if len(c.Errors) > 0 {
			args = append(args, slog.String("error", c.Errors.String()))
			logger.Error("http request", args...)
		} else {
			logger.Info("http request", args...)
		}
	}
}

// cors answers preflight requests for any path and decorates every response,
// so the dashboard can call the helper from another origin.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, GET, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Credentials", "false")
		h.Set("Access-Control-Max-Age", "86400")
		h.Set("Access-Control-Allow-Headers", "X-Requested-With, X-HTTP-Method-Override, Content-Type, Accept")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// requirePassword parses the body and rejects requests whose password does
// not match. An unset password locks every job endpoint.
func (s *server) requirePassword(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if s.cfg.Password == "" || subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Password)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
		return
	}
	c.Set("body", req)
	c.Next()
}

func body(c *gin.Context) Request {
	v, _ := c.Get("body")
	req, _ := v.(Request)
	return req
}

func (s *server) restart(c *gin.Context) {
	s.run(c, "restart", RestartScripts(s.cfg, body(c).PortBasedSSL), nil)
}

func (s *server) restartSuperAdmin(c *gin.Context) {
	s.run(c, "restart-super-admin", SuperAdminScripts(s.cfg), nil)
}

func (s *server) renewCert(c *gin.Context) {
	if !s.cfg.SuperAdmin {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized!"})
		return
	}
	if !ValidEmail(s.cfg.CertEmail) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid cert email"})
		return
	}
	s.run(c, "renew-cert", []string{RenewCertScript(s.cfg.CertEmail)}, func(rep Report, resp *Response) {
		resp.Message = rep.Stdout("")
		resp.Error = rep.Stderr("")
	})
}

func (s *server) uploadCert(c *gin.Context) {
	if !s.cfg.SuperAdmin {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized!"})
		return
	}
	if !ValidBucket(s.cfg.CertBucket) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cert bucket not provided!"})
		return
	}
	s.run(c, "upload-cert", UploadCertScripts(s.cfg.CertBucket), func(rep Report, resp *Response) {
		resp.Message = rep.Stdout(",")
		resp.Error = rep.Stderr(",")
	})
}

func (s *server) updateSSLCert(c *gin.Context) {
	bucket := body(c).CertBucketName
	if !ValidBucket(bucket) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide valid bucket name"})
		return
	}
	s.run(c, "update-ssl-cert", UpdateSSLCertScripts(s.cfg, bucket), nil)
}

// run executes a plan detached from the request so a dropped client cannot
// interrupt a half-finished restart. The executor still cancels it when the
// daemon stops.
func (s *server) run(c *gin.Context, kind string, scripts []string, decorate func(Report, *Response)) {
	ctx := context.WithoutCancel(c.Request.Context())
	rep, err := s.exec.Exec(ctx, kind, scripts)
	switch {
	case errors.Is(err, ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "job": rep.Job})
		return
	}
	resp := Response{OK: true, Job: rep.Job}
	if decorate != nil {
		decorate(rep, &resp)
	}
	c.JSON(http.StatusOK, resp)
}
