package backoffice

import "strings"

// Text markers the upstream pages are classified by. The back-office renders
// Chinese UI text; status codes are unreliable (it happily returns 200 with
// an embedded login form), so classification is content-based throughout.
var (
	loginMarkers = []string{"商户登录", "账号登录", "loginName"}

	// Any of these proves the authenticated query console is reachable
	consoleMarkers = []string{"交易查询", "tranx/search", "退出登录"}

	// Keywords present on an order-search result page
	orderKeywords = []string{
		"交易时间", "金额", "订单号", "支付方式",
		"交易状态", "商户订单号", "查询", "交易查询",
	}

	captchaMarkers = []string{"验证码", "captcha"}

	// Hints that a submitted credential (not the captcha) was rejected
	credentialMarkers = []string{"用户名或密码", "帐号或密码", "密码错误"}
)

func containsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, marker := range markers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func hasLoginMarker(text string) bool   { return containsAny(text, loginMarkers) }
func hasConsoleMarker(text string) bool { return containsAny(text, consoleMarkers) }
func hasCaptchaMarker(text string) bool { return containsAny(text, captchaMarkers) }

// classifyPageShape decides what kind of page an order-search response is.
// Order keywords are checked first: a console page may well mention 登录 in
// its chrome, but a login page never shows the order table.
func classifyPageShape(text string) PageShape {
	if containsAny(text, orderKeywords) {
		return ShapeConsole
	}
	if hasLoginMarker(text) || containsAny(text, []string{"login", "username", "password", "登录"}) {
		return ShapeLogin
	}
	if hasCaptchaMarker(text) {
		return ShapeCaptcha
	}
	return ShapeUnknown
}

// classifyLoginResponse turns a login POST response into exactly one outcome.
// Success needs either a redirect off the login path or a body that proves
// the console is reachable while showing no login form.
func classifyLoginResponse(body string, redirectedOffLogin bool) LoginOutcome {
	success := hasConsoleMarker(body) && !hasLoginMarker(body)
	if success || (redirectedOffLogin && !hasLoginMarker(body)) {
		return OutcomeAuthenticated
	}
	if hasCaptchaMarker(body) {
		return OutcomeCaptchaRequired
	}
	if containsAny(body, credentialMarkers) || hasLoginMarker(body) {
		return OutcomeCredentialInvalid
	}
	return OutcomeUnknown
}
