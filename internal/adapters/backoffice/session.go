// Package backoffice talks to the Tonglian merchant back-office: the
// CAPTCHA-gated login flow, session probing, and order-search scraping.
//
// Every scraping method follows the same discipline: build the request,
// make it, assert on the response shape by text markers, then transform the
// body into typed output. No raw HTML or transport error crosses out of this
// package boundary.
package backoffice

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/config"
)

// Cookie names forming the durable identity pair
const (
	cookieNameUserID  = "userid"
	cookieNameSession = "SESSION"
)

// SessionManager owns the credential and the live authenticated session.
// It is the only writer of the cookie jar; other components read cookies
// through it.
type SessionManager struct {
	cfg    config.BackofficeConfig
	client *resty.Client
	logger *slog.Logger

	state        State
	hiddenFields map[string]string
	captchaURL   string
}

// NewSessionManager creates a session manager with a fresh cookie jar
func NewSessionManager(cfg config.BackofficeConfig, logger *slog.Logger) (*SessionManager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseURL.Hostname()))
	client.SetTimeout(30 * time.Second)

	return &SessionManager{
		cfg:    cfg,
		client: client,
		logger: logger,
		state:  StateUnauthenticated,
	}, nil
}

// State returns the current session lifecycle state
func (s *SessionManager) State() State {
	return s.state
}

// Client exposes the underlying HTTP client so the order fetcher can replay
// requests under the same cookie jar. Read-only use.
func (s *SessionManager) Client() *resty.Client {
	return s.client
}

// Probe issues one read against the order console and classifies the result
// by text markers. It never returns an error: a network failure comes back
// as a not-authenticated result carrying the cause.
func (s *SessionManager) Probe(ctx context.Context) ProbeResult {
	res, err := s.client.R().
		SetContext(ctx).
		Get(s.cfg.OrdersPath)
	if err != nil {
		return ProbeResult{
			Authenticated: false,
			Shape:         ShapeUnknown,
			Reason:        "network failure",
			Err:           err,
		}
	}

	body := string(res.Body())
	switch {
	case hasLoginMarker(body):
		s.state = StateUnauthenticated
		return ProbeResult{Authenticated: false, Shape: ShapeLogin, Reason: "login page returned"}
	case strings.Contains(body, "交易查询"):
		s.state = StateAuthenticated
		return ProbeResult{Authenticated: true, Shape: ShapeConsole}
	default:
		return ProbeResult{Authenticated: false, Shape: ShapeUnknown, Reason: "page state unknown"}
	}
}

// BeginLogin fetches the login form and extracts its hidden fields and, if
// present, the CAPTCHA image reference. Detecting a CAPTCHA parks the
// session in AwaitingCaptcha until SubmitLogin is called with a code.
func (s *SessionManager) BeginLogin(ctx context.Context) (*LoginPage, error) {
	res, err := s.client.R().
		SetContext(ctx).
		Get(s.cfg.LoginPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch login page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse login page: %w", err)
	}

	if doc.Find("form").Length() == 0 {
		return nil, fmt.Errorf("no login form found on %s", s.cfg.LoginPath)
	}

	page := &LoginPage{HiddenFields: map[string]string{}}
	doc.Find("input[type=hidden]").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		value, _ := sel.Attr("value")
		if name != "" && value != "" {
			page.HiddenFields[name] = value
		}
	})

	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		lower := strings.ToLower(src)
		if strings.Contains(lower, "captcha") || strings.Contains(lower, "code") || strings.Contains(lower, "verify") {
			page.CaptchaImageURL = src
			page.CaptchaRequired = true
			return false
		}
		return true
	})

	s.hiddenFields = page.HiddenFields
	s.captchaURL = page.CaptchaImageURL
	if page.CaptchaRequired {
		s.state = StateAwaitingCaptcha
		s.logger.Info("Login requires captcha", "image_url", page.CaptchaImageURL)
	}

	return page, nil
}

// FetchCaptcha downloads the current CAPTCHA image. The server ties each
// image to the latest form token, so BeginLogin is re-run first; any code
// read off an earlier image is invalid after this call.
func (s *SessionManager) FetchCaptcha(ctx context.Context) (*CaptchaChallenge, error) {
	page, err := s.BeginLogin(ctx)
	if err != nil {
		return nil, err
	}
	if page.CaptchaImageURL == "" {
		return nil, fmt.Errorf("login page has no captcha image")
	}

	res, err := s.client.R().
		SetContext(ctx).
		Get(page.CaptchaImageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch captcha image: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("captcha endpoint returned HTTP %d", res.StatusCode())
	}

	return &CaptchaChallenge{
		Image:    res.Body(),
		ImageURL: page.CaptchaImageURL,
		IssuedAt: time.Now(),
	}, nil
}

// SubmitLogin posts the credential (plus hidden fields and CAPTCHA code, if
// supplied) and classifies the response into exactly one outcome. Transport
// failures are returned as errors; everything else is a typed outcome.
func (s *SessionManager) SubmitLogin(ctx context.Context, cred Credential, captchaCode string) (*LoginResult, error) {
	if s.hiddenFields == nil {
		if _, err := s.BeginLogin(ctx); err != nil {
			return nil, err
		}
	}

	form := map[string]string{
		"loginName": cred.Username,
		"password":  cred.Password,
		"loginType": "1",
	}
	for name, value := range s.hiddenFields {
		form[name] = value
	}
	if captchaCode != "" {
		form["captcha"] = captchaCode
	}

	res, err := s.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(s.cfg.LoginPath)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}

	body := string(res.Body())
	outcome := classifyLoginResponse(body, s.redirectedOffLogin(res))

	switch outcome {
	case OutcomeAuthenticated:
		s.state = StateAuthenticated
		s.hiddenFields = nil
		s.logger.Info("Login succeeded", "user", cred.Username)
		return &LoginResult{Outcome: outcome, Message: "登录成功"}, nil
	case OutcomeCaptchaRequired:
		// The submitted code (or its form token) was stale; the caller must
		// fetch a fresh challenge before retrying.
		s.state = StateAwaitingCaptcha
		s.logger.Warn("Login requires a fresh captcha code")
		return &LoginResult{Outcome: outcome, Message: "需要验证码"}, nil
	case OutcomeCredentialInvalid:
		s.state = StateInvalid
		s.logger.Error("Login rejected, credential invalid", "user", cred.Username)
		return &LoginResult{Outcome: outcome, Message: "用户名或密码错误"}, nil
	default:
		s.logger.Error("Login response unclassifiable", "status", res.StatusCode())
		return &LoginResult{Outcome: OutcomeUnknown, Message: "登录状态未知", RawBody: body}, nil
	}
}

// redirectedOffLogin reports whether the response ended up away from the
// login path, either via a followed redirect or a raw 30x Location header.
func (s *SessionManager) redirectedOffLogin(res *resty.Response) bool {
	if res.StatusCode() >= 300 && res.StatusCode() < 400 {
		location := res.Header().Get("Location")
		return location != "" && !strings.Contains(location, s.cfg.LoginPath)
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		final := res.RawResponse.Request.URL.Path
		return final != "" && !strings.Contains(final, s.cfg.LoginPath)
	}
	return false
}

// CookiePair returns the durable identity pair from the jar. Cookie names
// are matched the way the upstream sets them: userid lowercase, SESSION
// uppercase.
func (s *SessionManager) CookiePair() CookiePair {
	var pair CookiePair
	for _, cookie := range s.Cookies() {
		switch {
		case strings.EqualFold(cookie.Name, cookieNameUserID):
			pair.UserID = cookie.Value
		case strings.ToUpper(cookie.Name) == cookieNameSession:
			pair.Session = cookie.Value
		}
	}
	return pair
}

// Cookies returns the session's full cookie set for the back-office host:
// restored cookies first, then jar cookies issued by the server (which win
// on name collisions for readers like CookiePair).
func (s *SessionManager) Cookies() []*http.Cookie {
	cookies := append([]*http.Cookie{}, s.client.Cookies...)
	if baseURL, err := url.Parse(s.cfg.BaseURL); err == nil {
		if jar := s.client.GetClient().Jar; jar != nil {
			cookies = append(cookies, jar.Cookies(baseURL)...)
		}
	}
	return cookies
}

// RestoreCookiePair seeds the jar with a previously saved identity pair,
// e.g. one handed off through the cookie file by the login helper.
func (s *SessionManager) RestoreCookiePair(pair CookiePair) {
	if !pair.IsComplete() {
		return
	}
	s.client.SetCookies([]*http.Cookie{
		{Name: cookieNameUserID, Value: pair.UserID, Path: "/"},
		{Name: cookieNameSession, Value: pair.Session, Path: "/"},
	})
	s.logger.Debug("Restored session cookies", "userid", truncateSecret(pair.UserID))
}

// truncateSecret keeps logs free of full credential material
func truncateSecret(v string) string {
	if len(v) <= 6 {
		return "***"
	}
	return v[:6] + "..."
}
