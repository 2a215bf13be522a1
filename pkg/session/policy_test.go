package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igarchive/pkg/errors"
)

type fakeStore struct {
	exists   bool
	loadErr  error
	saveErr  error
	loads    int
	saves    int
}

func (s *fakeStore) Exists() bool { return s.exists }
func (s *fakeStore) Load() error  { s.loads++; return s.loadErr }
func (s *fakeStore) Save() error  { s.saves++; return s.saveErr }

type fakeValidator struct {
	result Validity
	calls  int
}

func (v *fakeValidator) Validate(ctx context.Context) Validity {
	v.calls++
	return v.result
}

type fakeAuth struct {
	loginErr      error
	logins        int
	twoFactorErrs []error
	twoFactors    int
	lastUsername  string
	lastPassword  string
	lastCode      string
}

func (a *fakeAuth) Login(ctx context.Context, username, password string) error {
	a.logins++
	a.lastUsername = username
	a.lastPassword = password
	return a.loginErr
}

func (a *fakeAuth) LoginTwoFactor(ctx context.Context, code string) error {
	a.lastCode = code
	var err error
	if a.twoFactors < len(a.twoFactorErrs) {
		err = a.twoFactorErrs[a.twoFactors]
	}
	a.twoFactors++
	return err
}

type fakePrompt struct {
	password string
	codes    []string
	codeIdx  int
}

func (p *fakePrompt) Password(username string) (string, error) { return p.password, nil }

func (p *fakePrompt) TwoFactorCode() (string, error) {
	code := "000000"
	if p.codeIdx < len(p.codes) {
		code = p.codes[p.codeIdx]
	}
	p.codeIdx++
	return code, nil
}

func newPolicy(store *fakeStore, validator *fakeValidator, auth *fakeAuth, prompt *fakePrompt) *Policy {
	return &Policy{
		Store:    store,
		Validate: validator,
		Auth:     auth,
		Prompt:   prompt,
		Username: "archivist",
	}
}

func TestEnsureReusesValidStoredSession(t *testing.T) {
	store := &fakeStore{exists: true}
	validator := &fakeValidator{result: ValidityValid}
	auth := &fakeAuth{}

	p := newPolicy(store, validator, auth, &fakePrompt{password: "hunter2"})

	state, err := p.Ensure(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateValidated, state)
	assert.Equal(t, 1, store.loads)
	assert.Equal(t, 1, validator.calls)
	assert.Equal(t, 0, auth.logins, "no credential login when the stored session validates")
	assert.Equal(t, 0, store.saves)
}

func TestEnsureFallsBackToLoginWhenSessionRejected(t *testing.T) {
	store := &fakeStore{exists: true}
	validator := &fakeValidator{result: ValidityInvalid}
	auth := &fakeAuth{}

	p := newPolicy(store, validator, auth, &fakePrompt{password: "hunter2"})

	state, err := p.Ensure(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, 1, auth.logins, "rejected session triggers exactly one interactive login")
	assert.Equal(t, "archivist", auth.lastUsername)
	assert.Equal(t, "hunter2", auth.lastPassword)
	assert.Equal(t, 1, store.saves, "fresh session is persisted")
}

func TestEnsureTreatsTransportErrorAsLoginFallback(t *testing.T) {
	store := &fakeStore{exists: true}
	validator := &fakeValidator{result: ValidityTransportError}
	auth := &fakeAuth{}

	p := newPolicy(store, validator, auth, &fakePrompt{password: "hunter2"})

	state, err := p.Ensure(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, 1, auth.logins)
}

func TestEnsureSkipsValidationWithoutStoredSession(t *testing.T) {
	store := &fakeStore{exists: false}
	validator := &fakeValidator{result: ValidityValid}
	auth := &fakeAuth{}

	p := newPolicy(store, validator, auth, &fakePrompt{password: "hunter2"})

	state, err := p.Ensure(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, 0, store.loads)
	assert.Equal(t, 0, validator.calls)
	assert.Equal(t, 1, auth.logins)
}

func TestEnsurePrefersSuppliedPassword(t *testing.T) {
	store := &fakeStore{}
	auth := &fakeAuth{}

	p := newPolicy(store, &fakeValidator{}, auth, &fakePrompt{password: "prompted"})
	p.Password = "from-env"

	_, err := p.Ensure(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "from-env", auth.lastPassword)
}

func TestEnsureTwoFactorSucceedsFirstCode(t *testing.T) {
	store := &fakeStore{}
	auth := &fakeAuth{
		loginErr:      errs.New(errs.ErrorTypeTwoFactor, "two-factor required"),
		twoFactorErrs: []error{nil},
	}
	prompt := &fakePrompt{password: "hunter2", codes: []string{"123456"}}

	p := newPolicy(store, &fakeValidator{}, auth, prompt)

	state, err := p.Ensure(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, 1, auth.twoFactors)
	assert.Equal(t, "123456", auth.lastCode)
	assert.Equal(t, 1, store.saves)
}

func TestEnsureTwoFactorRepromptsOnce(t *testing.T) {
	store := &fakeStore{}
	auth := &fakeAuth{
		loginErr: errs.New(errs.ErrorTypeTwoFactor, "two-factor required"),
		twoFactorErrs: []error{
			errs.New(errs.ErrorTypeAuth, "bad code"),
			nil,
		},
	}
	prompt := &fakePrompt{password: "hunter2", codes: []string{"111111", "222222"}}

	p := newPolicy(store, &fakeValidator{}, auth, prompt)

	state, err := p.Ensure(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, 2, auth.twoFactors)
	assert.Equal(t, "222222", auth.lastCode)
}

func TestEnsureTwoFactorGivesUpAfterSecondRejection(t *testing.T) {
	store := &fakeStore{}
	auth := &fakeAuth{
		loginErr: errs.New(errs.ErrorTypeTwoFactor, "two-factor required"),
		twoFactorErrs: []error{
			errs.New(errs.ErrorTypeAuth, "bad code"),
			errs.New(errs.ErrorTypeAuth, "bad code"),
		},
	}
	prompt := &fakePrompt{password: "hunter2", codes: []string{"111111", "222222"}}

	p := newPolicy(store, &fakeValidator{}, auth, prompt)

	state, err := p.Ensure(context.Background())

	require.Error(t, err)
	assert.Equal(t, StateNone, state)
	assert.Equal(t, 2, auth.twoFactors, "exactly one re-prompt after the first rejection")
	assert.Equal(t, 0, store.saves)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeTwoFactor, apiErr.Type)
}

func TestEnsurePropagatesLoginFailure(t *testing.T) {
	store := &fakeStore{}
	auth := &fakeAuth{loginErr: errs.New(errs.ErrorTypeAuth, "bad password")}

	p := newPolicy(store, &fakeValidator{}, auth, &fakePrompt{password: "wrong"})

	state, err := p.Ensure(context.Background())

	require.Error(t, err)
	assert.Equal(t, StateNone, state)
	assert.Equal(t, 0, store.saves)
}

func TestEnsureSurvivesSaveFailure(t *testing.T) {
	store := &fakeStore{saveErr: assertAnError()}
	auth := &fakeAuth{}

	p := newPolicy(store, &fakeValidator{}, auth, &fakePrompt{password: "hunter2"})

	state, err := p.Ensure(context.Background())

	require.NoError(t, err, "a session that cannot be persisted still serves this run")
	assert.Equal(t, StateAuthenticated, state)
}

func assertAnError() error {
	return errs.New(errs.ErrorTypeUnknown, "disk full")
}
