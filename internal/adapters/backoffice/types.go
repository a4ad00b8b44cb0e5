package backoffice

import (
	"errors"
	"time"
)

// State is the session lifecycle state
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAwaitingCaptcha State = "awaiting_captcha"
	StateAuthenticated   State = "authenticated"
	StateInvalid         State = "invalid"
)

// LoginOutcome classifies a login submission response
type LoginOutcome string

const (
	OutcomeAuthenticated     LoginOutcome = "authenticated"
	OutcomeCaptchaRequired   LoginOutcome = "captcha_required"
	OutcomeCredentialInvalid LoginOutcome = "credential_invalid"
	OutcomeUnknown           LoginOutcome = "unknown"
)

// PageShape classifies what kind of page the back-office returned
type PageShape string

const (
	ShapeConsole PageShape = "console"
	ShapeLogin   PageShape = "login"
	ShapeCaptcha PageShape = "captcha"
	ShapeUnknown PageShape = "unknown"
)

// ParseStrategy identifies which extraction path produced the orders
type ParseStrategy string

const (
	StrategyTable      ParseStrategy = "table"
	StrategyScriptJSON ParseStrategy = "script_json"
	StrategyTextScan   ParseStrategy = "text_scan"
	StrategyNone       ParseStrategy = "none"
)

// Sentinel failures surfaced by the order fetcher. Network errors are
// returned wrapped, not as one of these.
var (
	ErrSessionExpired   = errors.New("order page returned the login form, session expired")
	ErrCaptchaBlocked   = errors.New("order page demands captcha verification")
	ErrPageShapeUnknown = errors.New("unrecognized order page shape")
)

// Credential is the merchant identity. The secret is never logged in full.
type Credential struct {
	Username string
	Password string
}

// CaptchaChallenge is a human-verification image tied to the login form
// instance it was fetched under. Fetching a new image invalidates any code
// read from the previous one.
type CaptchaChallenge struct {
	Image    []byte
	ImageURL string
	IssuedAt time.Time
}

// LoginPage is the parsed state of a fetched login form
type LoginPage struct {
	HiddenFields    map[string]string
	CaptchaImageURL string
	CaptchaRequired bool
}

// ProbeResult reports whether the current cookies still open the order
// console. A failed probe never raises; the cause rides along instead.
type ProbeResult struct {
	Authenticated bool
	Shape         PageShape
	Reason        string
	Err           error
}

// LoginResult is the classified outcome of a login submission
type LoginResult struct {
	Outcome LoginOutcome
	Message string
	// RawBody is retained for diagnosis when the outcome is Unknown
	RawBody string
}

// CookiePair is the durable identity pair handed off between processes
type CookiePair struct {
	UserID  string
	Session string
}

// IsComplete reports whether both cookies are present and non-blank
func (p CookiePair) IsComplete() bool {
	return p.UserID != "" && p.Session != ""
}

// DateRange bounds an order query, inclusive on both ends
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Today returns a range covering only the current day
func Today() DateRange {
	now := time.Now()
	return DateRange{Start: now, End: now}
}

// RawOrderRecord is one transaction extracted from the order console.
// The external id may be synthetic (parsed_<n>) when the degraded text-scan
// path produced the record.
type RawOrderRecord struct {
	ExternalID    string  `json:"order_id"`
	Amount        float64 `json:"amount"`
	CreateTime    string  `json:"create_time,omitempty"`
	PayTime       string  `json:"pay_time,omitempty"`
	Status        string  `json:"status,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Synthetic     bool    `json:"synthetic,omitempty"`
}

// FetchResult carries the extracted orders and how they were extracted.
// Degraded is set when a lower-priority strategy had to be used.
type FetchResult struct {
	Orders   []RawOrderRecord
	Strategy ParseStrategy
	Degraded bool
}
