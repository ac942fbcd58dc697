package board

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/store"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong
// password.
var ErrInvalidCredentials = errors.New("invalid username or password")

const (
	randomPasswordLength   = 12
	randomPasswordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// initialPassword picks the first password of a new employee according to
// the configured scheme.
func initialPassword(cfg model.EmployeeConfig, username string) (string, error) {
	switch cfg.PasswordScheme {
	case model.PasswordSchemeLegacy:
		if username == "" {
			return "", fmt.Errorf("legacy password needs a username")
		}
		return cfg.PasswordPrefix + strings.ToUpper(username[:1]), nil
	case model.PasswordSchemeRandom, "":
		return randomPassword(randomPasswordLength)
	default:
		return "", fmt.Errorf("unknown password scheme %q", cfg.PasswordScheme)
	}
}

func randomPassword(n int) (string, error) {
	limit := big.NewInt(int64(len(randomPasswordAlphabet)))
	out := make([]byte, n)
	for i := range out {
		k, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating password: %w", err)
		}
		out[i] = randomPasswordAlphabet[k.Int64()]
	}
	return string(out), nil
}

func (b *Board) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Authenticate checks a username and password.
func (b *Board) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := b.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword replaces a user's password after checking the current
// one, and clears the forced-change flag.
func (b *Board) ChangePassword(ctx context.Context, userID int64, f PasswordForm) error {
	u, err := b.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	errs, err := checkStruct(f)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(f.Current)) != nil {
		errs.Add("current_password", msgWrongPassword)
	}
	if err := errs.orNil(); err != nil {
		return err
	}

	hash, err := b.hashPassword(f.New)
	if err != nil {
		return err
	}
	return b.store.SetPassword(ctx, userID, hash, false)
}

// CreateManager provisions a manager account with a chosen password. Used
// to bootstrap an empty database.
func (b *Board) CreateManager(ctx context.Context, f EmployeeForm, password string) (*model.User, error) {
	in, err := b.validateEmployee(ctx, f, 0)
	errs := ValidationErrors{}
	if err != nil {
		var ve ValidationErrors
		if !errors.As(err, &ve) {
			return nil, err
		}
		errs = ve
	}
	pwErrs, err := checkStruct(PasswordForm{New: password, Confirm: password})
	if err != nil {
		return nil, err
	}
	errs.merge(pwErrs)
	if err := errs.orNil(); err != nil {
		return nil, err
	}

	hash, err := b.hashPassword(password)
	if err != nil {
		return nil, err
	}

	u := model.User{
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := b.store.CreateUser(ctx, &u, model.GroupManagers); err != nil {
		return nil, err
	}

	log.Printf("[board] manager %s (%d) created", u.Username, u.ID)
	return &u, nil
}

// StartSession opens a session for userID.
func (b *Board) StartSession(ctx context.Context, userID int64) (model.Session, error) {
	now := b.now()
	sess := model.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(b.sessionTTL),
		CreatedAt: now,
	}
	if err := b.store.CreateSession(ctx, sess); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// SessionUser resolves a session token to its user. Expired sessions are
// removed and reported as ErrNotFound.
func (b *Board) SessionUser(ctx context.Context, token string) (*model.User, error) {
	sess, err := b.store.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.Expired(b.now()) {
		if err := b.store.DeleteSession(ctx, token); err != nil {
			log.Printf("[board] removing expired session: %v", err)
		}
		return nil, fmt.Errorf("session: %w", store.ErrNotFound)
	}
	return b.store.GetUserByID(ctx, sess.UserID)
}

// EndSession signs a session out.
func (b *Board) EndSession(ctx context.Context, token string) error {
	return b.store.DeleteSession(ctx, token)
}

// PurgeSessions removes expired sessions.
func (b *Board) PurgeSessions(ctx context.Context) (int64, error) {
	return b.store.DeleteExpiredSessions(ctx, b.now())
}
