package session_test

import (
	"context"
	"sync"

	session "github.com/hivecash/go-session"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// testIdentity implements session.Identity.
type testIdentity struct {
	id    string
	email string
	name  string
}

func (t testIdentity) ID() string          { return t.id }
func (t testIdentity) Email() string       { return t.email }
func (t testIdentity) DisplayName() string { return t.name }

// fakeProvider is a scriptable session.IdentityProvider whose change stream
// the tests drive directly.
type fakeProvider struct {
	mu      sync.Mutex
	current session.Identity

	token    string
	tokenErr error

	signInErr error
	signUpErr error
	resetErr  error
	reauthErr error
	updateErr error

	resetEmails []string

	ch chan session.SessionChange
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{ch: make(chan session.SessionChange, 16), token: "tok-1"}
}

func (f *fakeProvider) emit(change session.SessionChange) {
	f.mu.Lock()
	f.current = change.Identity
	f.mu.Unlock()
	f.ch <- change
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password, displayName string) (session.Identity, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	id := testIdentity{id: "uid-" + email, email: email, name: displayName}
	f.mu.Lock()
	f.current = id
	f.mu.Unlock()
	return id, nil
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (session.Identity, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	id := testIdentity{id: "uid-" + email, email: email, name: "Signed In"}
	f.mu.Lock()
	f.current = id
	f.mu.Unlock()
	return id, nil
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.current = nil
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) SendPasswordReset(ctx context.Context, email string) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.mu.Lock()
	f.resetEmails = append(f.resetEmails, email)
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) UpdateDisplayName(ctx context.Context, displayName string) (session.Identity, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, session.ErrNotAuthenticated
	}
	id := testIdentity{id: f.current.ID(), email: f.current.Email(), name: displayName}
	f.current = id
	return id, nil
}

func (f *fakeProvider) Reauthenticate(ctx context.Context, password string) error {
	return f.reauthErr
}

func (f *fakeProvider) CurrentIdentity() session.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeProvider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return f.token, nil
}

func (f *fakeProvider) Subscribe() (<-chan session.SessionChange, func()) {
	return f.ch, func() {}
}

// fakeProfiles is an in-memory session.ProfileService.
type fakeProfiles struct {
	mu        sync.Mutex
	records   map[string]session.Profile
	getErr    error
	createErr error
	updateErr error
	creates   int

	// onUpdate runs at the top of Update, letting tests interleave other
	// session events with an in-flight profile write.
	onUpdate func()
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{records: map[string]session.Profile{}}
}

func (f *fakeProfiles) put(p session.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[p.ID] = p
}

func (f *fakeProfiles) Create(ctx context.Context, rec session.NewProfile) (session.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return session.Profile{}, f.createErr
	}
	p := session.Profile{ID: rec.ID, Email: rec.Email, DisplayName: rec.DisplayName}
	f.records[p.ID] = p
	return p, nil
}

func (f *fakeProfiles) Get(ctx context.Context, externalID string) (session.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return session.Profile{}, f.getErr
	}
	p, ok := f.records[externalID]
	if !ok {
		return session.Profile{}, session.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfiles) Update(ctx context.Context, externalID string, patch session.ProfilePatch) (session.Profile, error) {
	if f.onUpdate != nil {
		f.onUpdate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return session.Profile{}, f.updateErr
	}
	p, ok := f.records[externalID]
	if !ok {
		return session.Profile{}, session.ErrProfileNotFound
	}
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.Role != nil {
		p.Role = *patch.Role
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	f.records[externalID] = p
	return p, nil
}

func (f *fakeProfiles) ListUsers(ctx context.Context) ([]session.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.Profile, 0, len(f.records))
	for _, p := range f.records {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProfiles) ListParticipants(ctx context.Context) ([]session.Profile, error) {
	users, _ := f.ListUsers(ctx)
	out := users[:0]
	for _, p := range users {
		if p.Role == session.RoleParticipant {
			out = append(out, p)
		}
	}
	return out, nil
}

// captureSink records every activity event it sees.
type captureSink struct {
	mu     sync.Mutex
	events []session.ActivityEvent
	err    error
}

func (c *captureSink) Record(ctx context.Context, event session.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *captureSink) byType(t session.ActivityEventType) []session.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []session.ActivityEvent
	for _, e := range c.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

// cfgStub implements session.Config.
type cfgStub struct{}

func (cfgStub) GetIdentityBaseURL() string      { return "https://id.test" }
func (cfgStub) GetIdentityAPIKey() string       { return "test-key" }
func (cfgStub) GetProfileAPIBaseURL() string    { return "https://api.test" }
func (cfgStub) GetTokenKey() string             { return "hivecash.session.token" }
func (cfgStub) GetLegacyTokenKey() string       { return "token" }
func (cfgStub) GetRejectedRouteKey() string     { return "hivecash.rejected.route" }
func (cfgStub) GetRejectedRouteDefault() string { return "/dashboard" }
func (cfgStub) GetLoadingView() string          { return "session/loading" }

// MockContext mocks router.Context.
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}
