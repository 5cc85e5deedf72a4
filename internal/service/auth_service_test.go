package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-webhook/internal/model"
	"go-auth-webhook/internal/password"
	"go-auth-webhook/internal/token"
)

const testNamespace = "https://hasura.io/jwt/claims"

var (
	signingKeyOnce sync.Once
	signingKey     *rsa.PrivateKey
)

func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	signingKeyOnce.Do(func() {
		var err error
		signingKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return signingKey
}

type memoryStore struct {
	mu      sync.Mutex
	users   map[int64]model.User
	nextID  int64
	calls   int
	failErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[int64]model.User{}, nextID: 1}
}

func (m *memoryStore) add(t *testing.T, user model.User, plain string) model.User {
	t.Helper()

	hash, err := password.Encode(plain, "testsalt", 10)
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()

	user.ID = m.nextID
	user.PasswordHash = hash
	m.nextID++
	m.users[user.ID] = user
	return user
}

func (m *memoryStore) update(user model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *memoryStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memoryStore) FindByUsername(_ context.Context, username string, withGroups bool) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.failErr != nil {
		return model.User{}, m.failErr
	}
	for _, user := range m.users {
		if user.Username == username {
			if !withGroups {
				user.Groups = nil
			}
			return user, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (m *memoryStore) FindByID(_ context.Context, id int64, withGroups bool) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.failErr != nil {
		return model.User{}, m.failErr
	}
	user, ok := m.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	if !withGroups {
		user.Groups = nil
	}
	return user, nil
}

func (m *memoryStore) Create(_ context.Context, nu model.NewUser) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.failErr != nil {
		return model.User{}, m.failErr
	}
	for _, user := range m.users {
		if user.Username == nu.Username {
			return model.User{}, model.ErrUsernameTaken
		}
	}

	user := model.User{
		ID:           m.nextID,
		Username:     nu.Username,
		PasswordHash: nu.PasswordHash,
		FirstName:    nu.Nickname,
		Email:        nu.Email,
		IsActive:     true,
		DateJoined:   time.Now().UTC(),
	}
	m.nextID++
	m.users[user.ID] = user
	return user, nil
}

type fixture struct {
	store    *memoryStore
	service  *AuthService
	verifier *token.Verifier
}

func newFixture(t *testing.T, issueOnSignup bool) fixture {
	t.Helper()

	key := testSigningKey(t)
	issuer, err := token.NewIssuer(token.Config{Namespace: testNamespace}, key)
	require.NoError(t, err)
	verifier, err := token.NewVerifier(token.Config{Namespace: testNamespace}, &key.PublicKey)
	require.NoError(t, err)

	store := newMemoryStore()
	codec := password.NewCodec(password.Options{Iterations: 10, MaxConcurrent: 2})
	return fixture{
		store:    store,
		service:  NewAuthService(store, codec, issuer, verifier, issueOnSignup),
		verifier: verifier,
	}
}

func TestLoginIssuesTokenWithStructuralRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	alice := f.store.add(t, model.User{Username: "alice", FirstName: "Al", IsActive: true}, "secret1")

	resp, err := f.service.Login(context.Background(), model.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, alice.ID, resp.ID)
	require.Equal(t, "alice", resp.Username)
	require.Equal(t, "Al", resp.Nickname)
	require.NotEmpty(t, resp.Token)

	claims, err := f.verifier.Verify(resp.Token)
	require.NoError(t, err)
	require.Equal(t, "user", claims.DefaultRole)
	require.Equal(t, []string{"user"}, claims.AllowedRoles)
	require.Equal(t, "1", claims.UserID)
}

func TestLoginFailuresCollapseToInvalidCredentials(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.store.add(t, model.User{Username: "alice", IsActive: true}, "secret1")
	f.store.add(t, model.User{Username: "dormant", IsActive: false}, "secret1")

	cases := []struct {
		name  string
		req   model.LoginRequest
		cause error
	}{
		{name: "wrong password", req: model.LoginRequest{Username: "alice", Password: "wrong"}},
		{name: "unknown user", req: model.LoginRequest{Username: "ghost", Password: "secret1"}, cause: model.ErrUserNotFound},
		{name: "inactive user", req: model.LoginRequest{Username: "dormant", Password: "secret1"}, cause: model.ErrUserInactive},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := f.service.Login(context.Background(), tc.req)
			require.ErrorIs(t, err, model.ErrInvalidCredentials)
			if tc.cause != nil {
				require.ErrorIs(t, err, tc.cause)
			}
			require.Empty(t, resp.Token)
		})
	}
}

type countingCodec struct {
	*password.Codec

	mu      sync.Mutex
	encoded []string
}

func (c *countingCodec) Verify(ctx context.Context, plain string, encoded string) (bool, error) {
	c.mu.Lock()
	c.encoded = append(c.encoded, encoded)
	c.mu.Unlock()
	return c.Codec.Verify(ctx, plain, encoded)
}

func (c *countingCodec) verified() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.encoded...)
}

func TestLoginDerivesKeyForUnknownUser(t *testing.T) {
	t.Parallel()

	key := testSigningKey(t)
	issuer, err := token.NewIssuer(token.Config{Namespace: testNamespace}, key)
	require.NoError(t, err)
	verifier, err := token.NewVerifier(token.Config{Namespace: testNamespace}, &key.PublicKey)
	require.NoError(t, err)

	store := newMemoryStore()
	alice := store.add(t, model.User{Username: "alice", IsActive: true}, "secret1")
	codec := &countingCodec{Codec: password.NewCodec(password.Options{Iterations: 25, MaxConcurrent: 1})}
	svc := NewAuthService(store, codec, issuer, verifier, false)

	_, err = svc.Login(context.Background(), model.LoginRequest{Username: "ghost", Password: "secret1"})
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	calls := codec.verified()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0], "pbkdf2_sha256$25$"), calls[0])
	assert.False(t, password.Verify("secret1", calls[0]))

	_, err = svc.Login(context.Background(), model.LoginRequest{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	calls = codec.verified()
	require.Len(t, calls, 2)
	assert.Equal(t, alice.PasswordHash, calls[1])
}

func TestLoginValidatesFieldsBeforeStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	_, err := f.service.Login(context.Background(), model.LoginRequest{})
	require.ErrorIs(t, err, model.ErrInvalidField)

	var fieldErrs model.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs))
	require.Len(t, fieldErrs, 2)
	require.Equal(t, "password", fieldErrs[0].Field)
	require.Equal(t, "username", fieldErrs[1].Field)
	require.Zero(t, f.store.callCount())
}

func TestLoginPropagatesStoreFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	storeErr := errors.New("connection refused")
	f.store.failErr = storeErr

	_, err := f.service.Login(context.Background(), model.LoginRequest{Username: "alice", Password: "secret1"})
	require.ErrorIs(t, err, storeErr)
	require.NotErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuthorizeAnonymousSkipsStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	decision, err := f.service.Authorize(context.Background(), model.Credentials{RequestedRole: "admin"})
	require.NoError(t, err)
	require.True(t, decision.Anonymous())
	require.Zero(t, f.store.callCount())
}

func TestAuthorizeUsesCurrentUserState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	bob := f.store.add(t, model.User{Username: "bob", IsActive: true}, "secret1")

	resp, err := f.service.Login(context.Background(), model.LoginRequest{Username: "bob", Password: "secret1"})
	require.NoError(t, err)

	bob.IsStaff = true
	bob.Groups = []model.Group{{ID: 1, Name: "editor"}}
	f.store.update(bob)

	decision, err := f.service.Authorize(context.Background(), model.Credentials{Token: resp.Token})
	require.NoError(t, err)
	require.False(t, decision.Anonymous())
	require.Equal(t, testNamespace, decision.Namespace)
	require.Equal(t, "user", decision.Claims.DefaultRole)
	require.Equal(t, []string{"staff", "user", "editor"}, decision.Claims.AllowedRoles)
	require.Equal(t, "1", decision.Claims.UserID)
}

func TestAuthorizeRequestedRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.store.add(t, model.User{Username: "carol", IsActive: true, Groups: []model.Group{{ID: 3, Name: "editor"}}}, "secret1")

	resp, err := f.service.Login(context.Background(), model.LoginRequest{Username: "carol", Password: "secret1"})
	require.NoError(t, err)

	held, err := f.service.Authorize(context.Background(), model.Credentials{Token: resp.Token, RequestedRole: "editor"})
	require.NoError(t, err)
	require.Equal(t, "editor", held.Claims.DefaultRole)

	forged, err := f.service.Authorize(context.Background(), model.Credentials{Token: resp.Token, RequestedRole: "admin"})
	require.NoError(t, err)
	require.Equal(t, "user", forged.Claims.DefaultRole)
	require.NotContains(t, forged.Claims.AllowedRoles, "admin")
}

func TestAuthorizeRejectsDeactivatedOrDeletedUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	dave := f.store.add(t, model.User{Username: "dave", IsActive: true}, "secret1")

	resp, err := f.service.Login(context.Background(), model.LoginRequest{Username: "dave", Password: "secret1"})
	require.NoError(t, err)

	dave.IsActive = false
	f.store.update(dave)

	_, err = f.service.Authorize(context.Background(), model.Credentials{Token: resp.Token})
	require.ErrorIs(t, err, model.ErrUserInactive)

	f.store.mu.Lock()
	delete(f.store.users, dave.ID)
	f.store.mu.Unlock()

	_, err = f.service.Authorize(context.Background(), model.Credentials{Token: resp.Token})
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestAuthorizeRejectsBadTokens(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	_, err := f.service.Authorize(context.Background(), model.Credentials{Token: "not-a-token"})
	require.ErrorIs(t, err, model.ErrMalformedToken)
	require.Zero(t, f.store.callCount())
}

func TestSignup(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	resp, err := f.service.Signup(context.Background(), model.SignupRequest{
		Username: "erin",
		Password: "longenough",
		Nickname: "Erin",
		Email:    "erin@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "erin", resp.Username)
	require.Equal(t, "Erin", resp.Nickname)
	require.Empty(t, resp.Token)

	stored, err := f.store.FindByUsername(context.Background(), "erin", false)
	require.NoError(t, err)
	require.True(t, stored.IsActive)
	require.True(t, password.Verify("longenough", stored.PasswordHash))
	require.False(t, password.NeedsUpgrade(stored.PasswordHash, 10))

	login, err := f.service.Login(context.Background(), model.LoginRequest{Username: "erin", Password: "longenough"})
	require.NoError(t, err)
	require.NotEmpty(t, login.Token)
}

func TestSignupIssuesTokenWhenEnabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	resp, err := f.service.Signup(context.Background(), model.SignupRequest{Username: "frank", Password: "longenough"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	claims, err := f.verifier.Verify(resp.Token)
	require.NoError(t, err)
	require.Equal(t, "user", claims.DefaultRole)
}

func TestSignupReportsEveryViolation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	_, err := f.service.Signup(context.Background(), model.SignupRequest{
		Username: "this-username-is-definitely-too-long",
		Password: "short",
		Nickname: "a nickname that runs past thirty characters",
		Email:    "not-an-email",
	})

	var fieldErrs model.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs))

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field)
		assert.NotEmpty(t, fe.Message)
	}
	require.Equal(t, []string{"email", "nickname", "password", "username"}, fields)
	require.Zero(t, f.store.callCount())
}

func TestSignupBoundaries(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	_, err := f.service.Signup(context.Background(), model.SignupRequest{
		Username: "abcdefghijklmnopqrstuvwxyz01234",
		Password: "1234567",
		Nickname: "abcdefghijklmnopqrstuvwxyz0123",
	})
	require.NoError(t, err)

	_, err = f.service.Signup(context.Background(), model.SignupRequest{
		Username: "abcdefghijklmnopqrstuvwxyz012345",
		Password: "1234567",
	})
	require.ErrorIs(t, err, model.ErrInvalidField)

	_, err = f.service.Signup(context.Background(), model.SignupRequest{Username: "gina", Password: "123456"})
	require.ErrorIs(t, err, model.ErrInvalidField)
}

func TestSignupDuplicateUsername(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.store.add(t, model.User{Username: "henry", IsActive: true}, "secret1")

	_, err := f.service.Signup(context.Background(), model.SignupRequest{Username: "henry", Password: "longenough"})

	var fieldErrs model.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs))
	require.Len(t, fieldErrs, 1)
	require.Equal(t, "username", fieldErrs[0].Field)
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	ivy := f.store.add(t, model.User{Username: "ivy", FirstName: "Ivy", IsActive: true}, "secret1")

	resp, err := f.service.Login(context.Background(), model.LoginRequest{Username: "ivy", Password: "secret1"})
	require.NoError(t, err)

	profile, err := f.service.CurrentUser(context.Background(), model.Credentials{Token: resp.Token})
	require.NoError(t, err)
	require.Equal(t, model.UserProfile{ID: ivy.ID, Username: "ivy", Nickname: "Ivy"}, profile)

	_, err = f.service.CurrentUser(context.Background(), model.Credentials{})
	require.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestKeySetPublishesVerifierKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	set := f.service.KeySet()
	require.Len(t, set.Keys, 1)
	require.Equal(t, "RS256", set.Keys[0].Alg)
	require.Equal(t, token.KeyID(&testSigningKey(t).PublicKey), set.Keys[0].Kid)
}
