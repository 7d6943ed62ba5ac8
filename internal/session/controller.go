package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Errors returned by the session controller.
var (
	ErrMalformedToken = errors.New("malformed session token")
	ErrTokenExpired   = errors.New("session token already expired")
	ErrNoSession      = errors.New("no active session")
)

// EndReason says why a session ended.
type EndReason string

const (
	// ReasonExpired means the token lifetime ran out.
	ReasonExpired EndReason = "expired"
	// ReasonLogout means the user ended the session explicitly.
	ReasonLogout EndReason = "logout"
)

// Session is the active authenticated state.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Controller owns the session token and its lifetime. The token's expiry is
// decoded without signature verification: the backend verifies every call,
// the client only needs to know when to log the user out.
type Controller struct {
	mutex   sync.Mutex
	session *Session
	timer   *time.Timer
	nowFn   func() time.Time
	onEnd   []func(reason EndReason)
	logger  *zap.Logger
	afterFn func(duration time.Duration, callback func()) *time.Timer
}

// NewController wires a controller. A nil logger falls back to a no-op one.
func NewController(now func() time.Time, logger *zap.Logger) *Controller {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		nowFn:   now,
		logger:  logger,
		afterFn: time.AfterFunc,
	}
}

// OnEnd registers a callback fired once per session end, for expiry and
// explicit logout alike.
func (controller *Controller) OnEnd(callback func(reason EndReason)) {
	if callback == nil {
		return
	}
	controller.mutex.Lock()
	defer controller.mutex.Unlock()
	controller.onEnd = append(controller.onEnd, callback)
}

// Start installs a fresh token, replacing any active session. Tokens
// without a decodable future expiry are rejected.
func (controller *Controller) Start(token string) (Session, error) {
	expiresAt, err := decodeExpiry(token)
	if err != nil {
		return Session{}, err
	}
	now := controller.nowFn()
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return Session{}, fmt.Errorf("%w: expired at %s", ErrTokenExpired, expiresAt.Format(time.RFC3339))
	}

	controller.mutex.Lock()
	if controller.timer != nil {
		controller.timer.Stop()
	}
	session := Session{Token: token, ExpiresAt: expiresAt}
	controller.session = &session
	controller.timer = controller.afterFn(remaining, controller.expire)
	controller.mutex.Unlock()

	controller.logger.Info("session started",
		zap.Time("expires_at", expiresAt),
		zap.Duration("lifetime", remaining))
	return session, nil
}

// Current returns the active session, if any.
func (controller *Controller) Current() (Session, bool) {
	controller.mutex.Lock()
	defer controller.mutex.Unlock()
	if controller.session == nil {
		return Session{}, false
	}
	return *controller.session, true
}

// Token implements the ledger client's token source.
func (controller *Controller) Token() (string, bool) {
	session, ok := controller.Current()
	if !ok {
		return "", false
	}
	return session.Token, true
}

// Logout ends the active session explicitly.
func (controller *Controller) Logout() error {
	if !controller.end(ReasonLogout) {
		return ErrNoSession
	}
	return nil
}

func (controller *Controller) expire() {
	controller.end(ReasonExpired)
}

func (controller *Controller) end(reason EndReason) bool {
	controller.mutex.Lock()
	if controller.session == nil {
		controller.mutex.Unlock()
		return false
	}
	controller.session = nil
	if controller.timer != nil {
		controller.timer.Stop()
		controller.timer = nil
	}
	callbacks := make([]func(reason EndReason), len(controller.onEnd))
	copy(callbacks, controller.onEnd)
	controller.mutex.Unlock()

	controller.logger.Info("session ended", zap.String("reason", string(reason)))
	for _, callback := range callbacks {
		callback(reason)
	}
	return true
}

func decodeExpiry(token string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	expiresAt, err := parsed.Claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}
	return expiresAt.Time, nil
}
