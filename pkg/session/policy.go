package session

import (
	"context"
	"errors"
	"fmt"

	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
)

// Validity is the outcome of a session validation probe. A transport
// failure is its own outcome: it says nothing about whether the stored
// session is still good.
type Validity int

const (
	ValidityValid Validity = iota
	ValidityInvalid
	ValidityTransportError
)

func (v Validity) String() string {
	switch v {
	case ValidityValid:
		return "valid"
	case ValidityInvalid:
		return "invalid"
	case ValidityTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// State describes where a session ended up after Ensure
type State int

const (
	// StateNone means no usable session exists
	StateNone State = iota
	// StateValidated means a stored session was loaded and verified
	StateValidated
	// StateAuthenticated means a fresh interactive login produced the session
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateValidated:
		return "validated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "none"
	}
}

// TokenStore persists session tokens between runs
type TokenStore interface {
	// Exists reports whether a stored session is present
	Exists() bool
	// Load restores the stored session into the client
	Load() error
	// Save persists the current session, overwriting any previous one
	Save() error
}

// Validator checks whether the loaded session is still accepted upstream
type Validator interface {
	// Validate performs a cheap authenticated request and classifies
	// the result
	Validate(ctx context.Context) Validity
}

// Authenticator performs interactive credential login
type Authenticator interface {
	// Login authenticates with username and password. A challenge for a
	// second factor surfaces as an error of type two_factor_required.
	Login(ctx context.Context, username, password string) error
	// LoginTwoFactor completes a pending two-factor challenge
	LoginTwoFactor(ctx context.Context, code string) error
}

// Prompter collects secrets from the operator
type Prompter interface {
	Password(username string) (string, error)
	TwoFactorCode() (string, error)
}

// twoFactorAttempts is how many codes the operator may enter for one
// challenge: the first try plus a single re-prompt.
const twoFactorAttempts = 2

// Policy decides how a run obtains a working session: reuse a stored
// one when it still validates, otherwise log in interactively.
type Policy struct {
	Store    TokenStore
	Validate Validator
	Auth     Authenticator
	Prompt   Prompter

	Username string
	// Password may be pre-supplied (env or credential store); when empty
	// the prompter asks for it.
	Password string

	Log logger.Logger
}

// Ensure returns with a working session or an error. A stored session
// that validates is reused without touching credentials. Anything else,
// including a validation probe that could not reach the service, falls
// through to interactive login.
func (p *Policy) Ensure(ctx context.Context) (State, error) {
	log := p.Log
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("username", p.Username)

	if p.Store.Exists() {
		if err := p.Store.Load(); err != nil {
			log.WithError(err).Warn("stored session could not be loaded, logging in fresh")
		} else {
			switch v := p.Validate.Validate(ctx); v {
			case ValidityValid:
				log.Info("reusing stored session")
				return StateValidated, nil
			case ValidityTransportError:
				log.Warn("session validation unreachable, attempting fresh login")
			default:
				log.Info("stored session rejected, logging in fresh")
			}
		}
	} else {
		log.Debug("no stored session found")
	}

	if err := ctx.Err(); err != nil {
		return StateNone, err
	}

	if err := p.login(ctx, log); err != nil {
		return StateNone, err
	}

	if err := p.Store.Save(); err != nil {
		// The session works for this run even if it will not survive
		// to the next one.
		log.WithError(err).Warn("failed to persist session")
	} else {
		log.Info("session saved")
	}

	return StateAuthenticated, nil
}

func (p *Policy) login(ctx context.Context, log logger.Logger) error {
	password := p.Password
	if password == "" {
		if p.Prompt == nil {
			return errs.New(errs.ErrorTypeAuth, "no password available and no prompt configured")
		}
		var err error
		password, err = p.Prompt.Password(p.Username)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	err := p.Auth.Login(ctx, p.Username, password)
	if err == nil {
		log.Info("logged in")
		return nil
	}

	var apiErr *errs.Error
	if !errors.As(err, &apiErr) || apiErr.Type != errs.ErrorTypeTwoFactor {
		return err
	}

	if p.Prompt == nil {
		return errs.New(errs.ErrorTypeTwoFactor, "account requires two-factor code but no prompt configured")
	}

	log.Info("two-factor authentication required")
	return p.loginTwoFactor(ctx, log)
}

func (p *Policy) loginTwoFactor(ctx context.Context, log logger.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= twoFactorAttempts; attempt++ {
		code, err := p.Prompt.TwoFactorCode()
		if err != nil {
			return fmt.Errorf("failed to read two-factor code: %w", err)
		}

		if err := p.Auth.LoginTwoFactor(ctx, code); err != nil {
			lastErr = err
			if attempt < twoFactorAttempts {
				log.WithError(err).Warn("two-factor code rejected, one more attempt")
			}
			continue
		}

		log.Info("logged in with two-factor code")
		return nil
	}

	return errs.Wrap(errs.ErrorTypeTwoFactor, "two-factor verification failed", lastErr)
}
