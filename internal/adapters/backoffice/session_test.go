package backoffice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/config"
)

const loginPageHTML = `
<html><body>
<form method="post" action="/login">
  <input type="hidden" name="csrf" value="token123">
  <input type="text" name="loginName">
  <input type="password" name="password">
  <img src="/captcha/image?id=1" alt="验证码">
</form>
</body></html>`

const loginPageNoCaptchaHTML = `
<html><body>
<form method="post" action="/login">
  <input type="hidden" name="csrf" value="token123">
  <input type="text" name="loginName">
</form>
</body></html>`

const consolePageHTML = `<html><body>交易查询 商户订单号 金额 退出登录</body></html>`
const loginMarkerHTML = `<html><body>商户登录 请输入loginName和密码</body></html>`

func testServerConfig(baseURL string) config.BackofficeConfig {
	return config.BackofficeConfig{
		BaseURL:    baseURL,
		LoginPath:  "/login",
		OrdersPath: "/tranx/search",
		UserAgent:  "test-agent",
	}
}

func newTestSession(t *testing.T, handler http.Handler) (*SessionManager, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	session, err := NewSessionManager(testServerConfig(server.URL), nil)
	require.NoError(t, err)
	return session, server
}

func TestProbe_Authenticated(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(consolePageHTML))
	}))

	result := session.Probe(context.Background())

	assert.True(t, result.Authenticated)
	assert.Equal(t, ShapeConsole, result.Shape)
	assert.Equal(t, StateAuthenticated, session.State())
}

func TestProbe_LoginPageMeansUnauthenticated(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(loginMarkerHTML))
	}))

	result := session.Probe(context.Background())

	assert.False(t, result.Authenticated)
	assert.Equal(t, ShapeLogin, result.Shape)
	assert.Equal(t, StateUnauthenticated, session.State())
}

func TestProbe_NetworkFailureDoesNotRaise(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // dead endpoint

	cfg := config.BackofficeConfig{BaseURL: server.URL, LoginPath: "/login", OrdersPath: "/tranx/search"}
	session, err := NewSessionManager(cfg, nil)
	require.NoError(t, err)

	result := session.Probe(context.Background())

	assert.False(t, result.Authenticated)
	assert.Error(t, result.Err)
	assert.Equal(t, "network failure", result.Reason)
}

func TestBeginLogin_DetectsCaptcha(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(loginPageHTML))
	}))

	page, err := session.BeginLogin(context.Background())

	require.NoError(t, err)
	assert.True(t, page.CaptchaRequired)
	assert.Equal(t, "/captcha/image?id=1", page.CaptchaImageURL)
	assert.Equal(t, "token123", page.HiddenFields["csrf"])
	assert.Equal(t, StateAwaitingCaptcha, session.State())
}

func TestBeginLogin_NoCaptcha(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(loginPageNoCaptchaHTML))
	}))

	page, err := session.BeginLogin(context.Background())

	require.NoError(t, err)
	assert.False(t, page.CaptchaRequired)
	assert.Equal(t, StateUnauthenticated, session.State())
}

func TestBeginLogin_NoForm(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>维护中</body></html>"))
	}))

	_, err := session.BeginLogin(context.Background())

	assert.Error(t, err)
}

func TestFetchCaptcha(t *testing.T) {
	image := []byte{0x89, 0x50, 0x4e, 0x47}
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/captcha/image" {
			_, _ = w.Write(image)
			return
		}
		_, _ = w.Write([]byte(loginPageHTML))
	}))

	challenge, err := session.FetchCaptcha(context.Background())

	require.NoError(t, err)
	assert.Equal(t, image, challenge.Image)
	assert.False(t, challenge.IssuedAt.IsZero())
}

func TestSubmitLogin_Success(t *testing.T) {
	var postedForm map[string]string
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			require.NoError(t, r.ParseForm())
			postedForm = map[string]string{}
			for key := range r.PostForm {
				postedForm[key] = r.PostForm.Get(key)
			}
			http.SetCookie(w, &http.Cookie{Name: "userid", Value: "u-123"})
			http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "s-456"})
			_, _ = w.Write([]byte(consolePageHTML))
			return
		}
		_, _ = w.Write([]byte(loginPageHTML))
	}))

	result, err := session.SubmitLogin(context.Background(), Credential{Username: "merchant1", Password: "pw"}, "8888")

	require.NoError(t, err)
	assert.Equal(t, OutcomeAuthenticated, result.Outcome)
	assert.Equal(t, StateAuthenticated, session.State())

	// Hidden fields and captcha code must ride along on the POST
	assert.Equal(t, "merchant1", postedForm["loginName"])
	assert.Equal(t, "token123", postedForm["csrf"])
	assert.Equal(t, "8888", postedForm["captcha"])

	pair := session.CookiePair()
	assert.Equal(t, "u-123", pair.UserID)
	assert.Equal(t, "s-456", pair.Session)
	assert.True(t, pair.IsComplete())
}

func TestSubmitLogin_RedirectIsSuccess(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			http.Redirect(w, r, "/main", http.StatusFound)
		case r.URL.Path == "/main":
			_, _ = w.Write([]byte("<html><body>加载中</body></html>"))
		default:
			_, _ = w.Write([]byte(loginPageNoCaptchaHTML))
		}
	}))

	result, err := session.SubmitLogin(context.Background(), Credential{Username: "m", Password: "p"}, "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeAuthenticated, result.Outcome)
}

func TestSubmitLogin_CaptchaRequired(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte("<html><body>验证码不正确，请重新输入</body></html>"))
			return
		}
		_, _ = w.Write([]byte(loginPageHTML))
	}))

	result, err := session.SubmitLogin(context.Background(), Credential{Username: "m", Password: "p"}, "0000")

	require.NoError(t, err)
	assert.Equal(t, OutcomeCaptchaRequired, result.Outcome)
	assert.Equal(t, StateAwaitingCaptcha, session.State())
}

func TestSubmitLogin_CredentialInvalid(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte("<html><body>用户名或密码错误</body></html>"))
			return
		}
		_, _ = w.Write([]byte(loginPageNoCaptchaHTML))
	}))

	result, err := session.SubmitLogin(context.Background(), Credential{Username: "m", Password: "bad"}, "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeCredentialInvalid, result.Outcome)
	assert.Equal(t, StateInvalid, session.State())
}

func TestSubmitLogin_UnknownRetainsBody(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte("<html><body>系统繁忙，请稍后再试</body></html>"))
			return
		}
		_, _ = w.Write([]byte(loginPageNoCaptchaHTML))
	}))

	result, err := session.SubmitLogin(context.Background(), Credential{Username: "m", Password: "p"}, "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, result.Outcome)
	assert.Contains(t, result.RawBody, "系统繁忙")
}

func TestRestoreCookiePair(t *testing.T) {
	var gotCookies map[string]string
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookies = map[string]string{}
		for _, c := range r.Cookies() {
			gotCookies[c.Name] = c.Value
		}
		_, _ = w.Write([]byte(consolePageHTML))
	}))

	session.RestoreCookiePair(CookiePair{UserID: "u1", Session: "s1"})
	result := session.Probe(context.Background())

	assert.True(t, result.Authenticated)
	assert.Equal(t, "u1", gotCookies["userid"])
	assert.Equal(t, "s1", gotCookies["SESSION"])
}

func TestRestoreCookiePair_IncompleteIsIgnored(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(consolePageHTML))
	}))

	session.RestoreCookiePair(CookiePair{UserID: "only-half"})

	assert.Empty(t, session.CookiePair().UserID)
}
