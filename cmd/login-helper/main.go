// The login helper is a small local web app for establishing a back-office
// session. The back office gates login behind an image captcha, so a human
// solves it here once; the resulting cookies are persisted for the sync
// daemon to pick up.
package main

import (
	"encoding/base64"
	"flag"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/tonglian-sync-backend/internal/adapters/backoffice"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/config"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/envfile"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/logging"
)

type helperServer struct {
	session    *backoffice.SessionManager
	cfg        *config.Config
	cookieFile string
	logger     *slog.Logger
}

func (s *helperServer) getStatus(c *gin.Context) {
	result := s.session.Probe(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"state":         string(s.session.State()),
		"authenticated": result.Authenticated,
		"shape":         string(result.Shape),
		"reason":        result.Reason,
	})
}

func (s *helperServer) getCaptcha(c *gin.Context) {
	page, err := s.session.BeginLogin(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load login page: " + err.Error()})
		return
	}

	if !page.CaptchaRequired {
		c.JSON(http.StatusOK, gin.H{"required": false})
		return
	}

	challenge, err := s.session.FetchCaptcha(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch captcha: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"required":  true,
		"image":     base64.StdEncoding.EncodeToString(challenge.Image),
		"issued_at": challenge.IssuedAt.Format(time.RFC3339),
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Captcha  string `json:"captcha"`
}

func (s *helperServer) postLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// Credentials from config unless supplied explicitly
	cred := backoffice.Credential{
		Username: req.Username,
		Password: req.Password,
	}
	if cred.Username == "" {
		cred.Username = s.cfg.Backoffice.Username
	}
	if cred.Password == "" {
		cred.Password = s.cfg.Backoffice.Password
	}
	if cred.Username == "" || cred.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	result, err := s.session.SubmitLogin(c.Request.Context(), cred, req.Captcha)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Login request failed: " + err.Error()})
		return
	}

	response := gin.H{
		"outcome": string(result.Outcome),
		"message": result.Message,
		"state":   string(s.session.State()),
	}

	if result.Outcome == backoffice.OutcomeAuthenticated {
		pair := s.session.CookiePair()
		if pair.IsComplete() {
			if err := envfile.UpdateCookiePair(s.cookieFile, pair.UserID, pair.Session); err != nil {
				s.logger.Error("Failed to persist session cookies", "error", err)
				response["cookie_error"] = err.Error()
			} else {
				s.logger.Info("Session cookies persisted", "path", s.cookieFile)
				response["cookies_saved"] = true
			}
		} else {
			s.logger.Warn("Login succeeded but cookie pair is incomplete")
			response["cookies_saved"] = false
		}
	}

	c.JSON(http.StatusOK, response)
}

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path")
		port       = flag.String("port", "5001", "Port to listen on")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "LOGIN")

	session, err := backoffice.NewSessionManager(cfg.Backoffice, logger)
	if err != nil {
		logger.Error("Failed to create session manager", "error", err)
		return
	}

	server := &helperServer{
		session:    session,
		cfg:        cfg,
		cookieFile: cfg.Storage.CookieFile,
		logger:     logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/status"},
	}))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:5001"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(loginPageHTML))
	})

	api := router.Group("/api")
	{
		api.GET("/status", server.getStatus)
		api.GET("/captcha", server.getCaptcha)
		api.POST("/login", server.postLogin)
	}

	logger.Info("Starting login helper", "port", *port)
	if err := router.Run(":" + *port); err != nil {
		logger.Error("Failed to start server", "error", err)
	}
}

const loginPageHTML = `<!DOCTYPE html>
<html lang="zh">
<head>
<meta charset="utf-8">
<title>商户后台登录</title>
<style>
  body { font-family: sans-serif; max-width: 420px; margin: 40px auto; }
  label { display: block; margin-top: 12px; }
  input { width: 100%; padding: 6px; box-sizing: border-box; }
  button { margin-top: 16px; padding: 8px 16px; }
  #captcha-img { margin-top: 8px; cursor: pointer; border: 1px solid #ccc; }
  #result { margin-top: 16px; white-space: pre-wrap; }
</style>
</head>
<body>
<h2>商户后台登录</h2>
<p>点击验证码图片可刷新</p>
<label>用户名 <input id="username" autocomplete="username"></label>
<label>密码 <input id="password" type="password" autocomplete="current-password"></label>
<label>验证码 <input id="captcha"></label>
<img id="captcha-img" alt="验证码" title="点击刷新" onclick="loadCaptcha()">
<br>
<button onclick="doLogin()">登录</button>
<div id="result"></div>
<script>
async function loadCaptcha() {
  const res = await fetch('/api/captcha');
  const data = await res.json();
  if (data.required) {
    document.getElementById('captcha-img').src = 'data:image/png;base64,' + data.image;
  } else {
    document.getElementById('result').textContent = data.error || '无需验证码';
  }
}
async function doLogin() {
  const body = {
    username: document.getElementById('username').value,
    password: document.getElementById('password').value,
    captcha: document.getElementById('captcha').value
  };
  const res = await fetch('/api/login', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify(body)
  });
  const data = await res.json();
  document.getElementById('result').textContent = JSON.stringify(data, null, 2);
  if (data.outcome === 'captcha_required') loadCaptcha();
}
loadCaptcha();
</script>
</body>
</html>`
