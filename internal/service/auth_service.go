package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"go-auth-webhook/internal/claims"
	"go-auth-webhook/internal/model"
	"go-auth-webhook/internal/token"
)

// UserStore is the persistence the flows need. Lookups return
// model.ErrUserNotFound for unknown users and Create returns
// model.ErrUsernameTaken on a duplicate username.
type UserStore interface {
	FindByUsername(ctx context.Context, username string, withGroups bool) (model.User, error)
	FindByID(ctx context.Context, id int64, withGroups bool) (model.User, error)
	Create(ctx context.Context, user model.NewUser) (model.User, error)
}

type PasswordCodec interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password string, encoded string) (bool, error)
}

type TokenIssuer interface {
	Issue(user model.User, claims model.ClaimSet) (model.TokenResponse, error)
}

type TokenVerifier interface {
	Verify(tokenString string) (model.ClaimSet, error)
	KeySet() token.JWKS
	Namespace() string
}

type AuthService struct {
	users         UserStore
	codec         PasswordCodec
	issuer        TokenIssuer
	verifier      TokenVerifier
	issueOnSignup bool
	// decoyHash is checked against when the username is unknown so that
	// every rejected login pays for one key derivation.
	decoyHash string
}

func NewAuthService(users UserStore, codec PasswordCodec, issuer TokenIssuer, verifier TokenVerifier, issueOnSignup bool) *AuthService {
	decoy, err := codec.Hash(context.Background(), "decoy-password-never-matches")
	if err != nil {
		slog.Warn("failed to build decoy password hash", "error", err)
	}

	return &AuthService{
		users:         users,
		codec:         codec,
		issuer:        issuer,
		verifier:      verifier,
		issueOnSignup: issueOnSignup,
		decoyHash:     decoy,
	}
}

// Login checks a username and password and returns a signed token.
// Unknown users, inactive users and wrong passwords all come back as
// model.ErrInvalidCredentials wrapped around the precise cause.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.TokenResponse, error) {
	if err := validateLogin(req); err != nil {
		return model.TokenResponse{}, err
	}

	user, err := s.users.FindByUsername(ctx, req.Username, true)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			if _, verr := s.codec.Verify(ctx, req.Password, s.decoyHash); verr != nil {
				return model.TokenResponse{}, verr
			}
			slog.Info("login rejected", "username", req.Username, "reason", "unknown user")
			return model.TokenResponse{}, fmt.Errorf("%w: %w", model.ErrInvalidCredentials, err)
		}
		return model.TokenResponse{}, fmt.Errorf("load user %q: %w", req.Username, err)
	}

	ok, err := s.codec.Verify(ctx, req.Password, user.PasswordHash)
	if err != nil {
		return model.TokenResponse{}, err
	}
	if !ok {
		slog.Info("login rejected", "username", req.Username, "reason", "wrong password")
		return model.TokenResponse{}, model.ErrInvalidCredentials
	}

	if !user.IsActive {
		slog.Info("login rejected", "username", req.Username, "reason", "inactive")
		return model.TokenResponse{}, fmt.Errorf("%w: %w", model.ErrInvalidCredentials, model.ErrUserInactive)
	}

	resp, err := s.issuer.Issue(user, claims.Resolve(user, ""))
	if err != nil {
		return model.TokenResponse{}, err
	}

	slog.Info("login succeeded", "user_id", user.ID)
	return resp, nil
}

// Authorize answers a webhook call. No token yields the anonymous decision
// without touching the store.
func (s *AuthService) Authorize(ctx context.Context, creds model.Credentials) (model.Decision, error) {
	namespace := s.verifier.Namespace()
	if creds.Anonymous() {
		return model.Decision{Namespace: namespace}, nil
	}

	user, err := s.userFromToken(ctx, creds.Token, true)
	if err != nil {
		return model.Decision{}, err
	}

	resolved := claims.Resolve(user, creds.RequestedRole)
	if creds.RequestedRole != "" && resolved.DefaultRole != creds.RequestedRole {
		slog.Warn("requested role not held", "user_id", user.ID, "role", creds.RequestedRole)
	}

	return model.Decision{Namespace: namespace, Claims: &resolved}, nil
}

// Signup validates and stores a new account. A token is only attached when
// the service was built to issue one on signup.
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (model.TokenResponse, error) {
	if err := validateSignup(req); err != nil {
		return model.TokenResponse{}, err
	}

	hash, err := s.codec.Hash(ctx, req.Password)
	if err != nil {
		return model.TokenResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, model.NewUser{
		Username:     req.Username,
		PasswordHash: hash,
		Nickname:     req.Nickname,
		Email:        req.Email,
	})
	if err != nil {
		if errors.Is(err, model.ErrUsernameTaken) {
			return model.TokenResponse{}, model.ValidationErrors{{Field: "username", Message: "Username is already taken"}}
		}
		return model.TokenResponse{}, fmt.Errorf("create user %q: %w", req.Username, err)
	}

	slog.Info("user signed up", "user_id", user.ID)

	if !s.issueOnSignup {
		return model.TokenResponse{ID: user.ID, Username: user.Username, Nickname: user.Nickname()}, nil
	}
	return s.issuer.Issue(user, claims.Resolve(user, ""))
}

// CurrentUser returns the profile of the token's owner.
func (s *AuthService) CurrentUser(ctx context.Context, creds model.Credentials) (model.UserProfile, error) {
	if creds.Anonymous() {
		return model.UserProfile{}, model.ErrInvalidToken
	}

	user, err := s.userFromToken(ctx, creds.Token, false)
	if err != nil {
		return model.UserProfile{}, err
	}

	return model.UserProfile{ID: user.ID, Username: user.Username, Nickname: user.Nickname()}, nil
}

func (s *AuthService) KeySet() token.JWKS {
	return s.verifier.KeySet()
}

func (s *AuthService) userFromToken(ctx context.Context, tokenString string, withGroups bool) (model.User, error) {
	set, err := s.verifier.Verify(tokenString)
	if err != nil {
		return model.User{}, err
	}

	id, err := strconv.ParseInt(set.UserID, 10, 64)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: user id %q", model.ErrMalformedToken, set.UserID)
	}

	user, err := s.users.FindByID(ctx, id, withGroups)
	if err != nil {
		return model.User{}, fmt.Errorf("load user %d: %w", id, err)
	}
	if !user.IsActive {
		return model.User{}, model.ErrUserInactive
	}

	return user, nil
}
