// Package session establishes an authenticated browsing context.
//
// The Manager is an explicit state machine:
//
//	Unknown -> Checking -> Authenticated | Unauthenticated
//	Unauthenticated -> AttemptingManual -> Authenticated | AttemptingAutomatic
//	AttemptingAutomatic -> Authenticated | Failed
//
// The manual step opens the login page and suspends on an injected
// Continuation. The automatic step needs a credential pair; without one the
// manager fails cleanly with a diagnostic.
package session

import (
	"context"
	"fmt"
	"time"

	"magistodl/pkg/browser"
	"magistodl/pkg/config"
	errs "magistodl/pkg/errors"
	"magistodl/pkg/logger"
	"magistodl/pkg/retry"
	"magistodl/pkg/site"
)

// State of the session state machine
type State int

const (
	Unknown State = iota
	Checking
	Authenticated
	Unauthenticated
	AttemptingManual
	AttemptingAutomatic
	Failed
)

func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	case AttemptingManual:
		return "attempting_manual"
	case AttemptingAutomatic:
		return "attempting_automatic"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ManualPrompt is shown while the manager waits for a manual login.
const ManualPrompt = "Log in in the browser window, then press ENTER to continue..."

// Manager drives the login state machine over a browser.Driver
type Manager struct {
	driver  browser.Driver
	profile *site.Profile
	cfg     config.SessionConfig
	creds   config.CredentialsConfig
	cont    Continuation
	logger  logger.Logger

	state   State
	history []State

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager creates a session manager. A nil Continuation behaves like
// Immediate.
func NewManager(d browser.Driver, p *site.Profile, cfg config.SessionConfig, creds config.CredentialsConfig, cont Continuation, log logger.Logger) *Manager {
	if cont == nil {
		cont = Immediate{}
	}
	return &Manager{
		driver:  d,
		profile: p,
		cfg:     cfg,
		creds:   creds,
		cont:    cont,
		logger:  logger.ForComponent(log, "session"),
		state:   Unknown,
		history: []State{Unknown},
		sleep:   retry.Wait,
	}
}

// State returns the current state
func (m *Manager) State() State {
	return m.state
}

// History returns every state visited, in order
func (m *Manager) History() []State {
	return append([]State(nil), m.history...)
}

func (m *Manager) transition(to State) {
	m.logger.DebugWithFields("Session state changed", map[string]interface{}{
		"from": m.state.String(),
		"to":   to.String(),
	})
	m.state = to
	m.history = append(m.history, to)
}

func (m *Manager) fail(msg string, cause error) error {
	m.transition(Failed)
	m.logger.WithError(cause).Error(msg)
	return errs.New(errs.ErrorTypeAuth, msg, cause)
}

// IsAuthenticated scans the signed-in indicators in order and then the
// current URL. Lookup errors count as "not found".
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	if _, sel, ok := browser.FindFirst(ctx, m.driver, m.profile.AuthIndicators); ok {
		m.logger.DebugWithFields("Found login indicator", map[string]interface{}{
			"selector": sel.String(),
		})
		return true
	}

	url, err := m.driver.CurrentURL(ctx)
	if err != nil {
		return false
	}
	if m.profile.IsAuthenticatedURL(url) {
		m.logger.DebugWithFields("URL indicates login", map[string]interface{}{
			"url": url,
		})
		return true
	}
	return false
}

// Establish runs the state machine to a terminal state. It returns nil in
// Authenticated and an auth error in Failed.
func (m *Manager) Establish(ctx context.Context) error {
	logger.LogStage(m.logger, "login", nil)

	if err := m.driver.Navigate(ctx, m.profile.BaseURL); err != nil {
		return m.fail("cannot open the site", err)
	}

	m.transition(Checking)
	if m.IsAuthenticated(ctx) {
		m.transition(Authenticated)
		m.logger.Info("Already logged in")
		return nil
	}
	m.transition(Unauthenticated)

	if err := m.attemptManual(ctx); err != nil {
		return err
	}
	if m.state == Authenticated {
		return nil
	}
	return m.attemptAutomatic(ctx)
}

func (m *Manager) attemptManual(ctx context.Context) error {
	m.transition(AttemptingManual)

	if err := m.driver.Navigate(ctx, m.profile.LoginURL); err != nil {
		return m.fail("cannot open the login page", err)
	}

	m.logger.InfoWithFields("Waiting for manual login", map[string]interface{}{
		"url": m.profile.LoginURL,
	})
	if err := m.cont.Await(ctx, ManualPrompt); err != nil {
		return m.fail("manual login interrupted", err)
	}

	if m.IsAuthenticated(ctx) {
		m.transition(Authenticated)
		m.logger.Info("Login successful")
		return nil
	}

	m.logger.Warn("Manual login not detected, trying automatic login")
	m.transition(AttemptingAutomatic)
	return nil
}

func (m *Manager) attemptAutomatic(ctx context.Context) error {
	if !m.creds.HasPair() {
		return m.fail(fmt.Sprintf("not logged in and no credentials for automatic login (set %sEMAIL and %sPASSWORD or run `magistodl auth login`)",
			config.EnvPrefix, config.EnvPrefix), nil)
	}

	entry, sel, err := browser.WaitPresent(ctx, m.driver, m.profile.LoginAffordances, m.cfg.LoginDiscoveryTimeout)
	if err != nil {
		return m.fail("login form not found", err)
	}

	email := entry
	if name, _, _ := entry.Attribute(ctx, "name"); name != "email" {
		m.logger.DebugWithFields("Clicking login affordance", map[string]interface{}{
			"selector": sel.String(),
		})
		if err := entry.Click(ctx); err != nil {
			return m.fail("cannot open the login form", err)
		}
		if err := m.sleep(ctx, m.cfg.PostLoginClickDelay); err != nil {
			return m.fail("login interrupted", err)
		}
		email, _, err = browser.WaitPresent(ctx, m.driver, []browser.Selector{m.profile.EmailField}, m.cfg.EmailFieldTimeout)
		if err != nil {
			return m.fail("email field not found", err)
		}
	}

	password, _, ok := browser.FindFirst(ctx, m.driver, []browser.Selector{m.profile.PasswordField})
	if !ok {
		return m.fail("password field not found", browser.ErrNotFound)
	}

	if err := email.SendKeys(ctx, m.creds.Email); err != nil {
		return m.fail("cannot type email", err)
	}
	if err := password.SendKeys(ctx, m.creds.Password); err != nil {
		return m.fail("cannot type password", err)
	}
	if err := password.SendKeys(ctx, browser.KeyEnter); err != nil {
		return m.fail("cannot submit login form", err)
	}

	if err := m.sleep(ctx, m.cfg.LoginSettle); err != nil {
		return m.fail("login interrupted", err)
	}

	if !m.IsAuthenticated(ctx) {
		return m.fail("automatic login failed: credentials rejected or login flow changed", nil)
	}
	m.transition(Authenticated)
	m.logger.Info("Automatic login successful")
	return nil
}
