// Package auth implements magic-link authentication: one-time tokens sent
// by email, redeemed for long-lived session tokens.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
)

// TokenLength is the number of characters in OTP and session tokens.
const TokenLength = 32

// DefaultOTPTTL is how long an emailed link stays valid.
const DefaultOTPTTL = 15 * time.Minute

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var (
	// ErrAccountNotFound is returned when no account matches an email.
	ErrAccountNotFound = errors.New("account not found")
	// ErrSessionNotFound is returned when no session matches a token hash.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidEmail is returned by StartAuth for an unusable address.
	ErrInvalidEmail = errors.New("invalid email")
)

// Account binds a normalized email address to a character.
type Account struct {
	Email     string
	Character entity.Identifier
	CreatedAt time.Time
}

// Session binds a hashed session token to a character.
type Session struct {
	TokenHash string
	Character entity.Identifier
	CreatedAt time.Time
}

// AccountRepository persists accounts.
type AccountRepository interface {
	// GetByEmail returns the account or an error wrapping ErrAccountNotFound.
	GetByEmail(ctx context.Context, email string) (Account, error)
	// Put upserts a.
	Put(ctx context.Context, a Account) error
}

// SessionRepository persists sessions keyed by token hash.
type SessionRepository interface {
	// Get returns the session or an error wrapping ErrSessionNotFound.
	Get(ctx context.Context, tokenHash string) (Session, error)
	Put(ctx context.Context, s Session) error
	Delete(ctx context.Context, tokenHash string) error
}

// Mailer delivers a magic link to an address.
type Mailer interface {
	SendMagicLink(ctx context.Context, to, link string) error
}

// LogMailer writes magic links to the log instead of sending email.
type LogMailer struct {
	Logger *zap.Logger
}

// SendMagicLink implements Mailer.
func (m LogMailer) SendMagicLink(_ context.Context, to, link string) error {
	m.Logger.Info("magic link", zap.String("to", to), zap.String("link", link))
	return nil
}

// Options configures a Service.
type Options struct {
	Logger    *zap.Logger
	Accounts  AccountRepository
	Sessions  SessionRepository
	Mailer    Mailer
	PublicURL string
	// OTPTTL defaults to DefaultOTPTTL.
	OTPTTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type pending struct {
	email   string
	expires time.Time
}

// Service issues and checks credentials.
// All methods are safe for concurrent use.
type Service struct {
	logger    *zap.Logger
	accounts  AccountRepository
	sessions  SessionRepository
	mailer    Mailer
	publicURL string
	ttl       time.Duration
	now       func() time.Time

	mu   sync.Mutex
	otps map[string]pending
}

// New creates a Service with no outstanding one-time tokens.
//
// Precondition: opts.Logger, opts.Accounts, opts.Sessions and opts.Mailer
// must be non-nil.
func New(opts Options) *Service {
	s := &Service{
		logger:    opts.Logger,
		accounts:  opts.Accounts,
		sessions:  opts.Sessions,
		mailer:    opts.Mailer,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		ttl:       opts.OTPTTL,
		now:       opts.Now,
		otps:      make(map[string]pending),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultOTPTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// NewToken returns a random alphanumeric token of TokenLength characters.
func NewToken() (string, error) {
	var b strings.Builder
	b.Grow(TokenLength)
	limit := big.NewInt(int64(len(alphanumeric)))
	for range TokenLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating token: %w", err)
		}
		b.WriteByte(alphanumeric[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// HashToken returns the at-rest form of a session token.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// StartAuth issues a one-time token for email and mails the magic link.
//
// Postcondition: On success exactly one new token is outstanding for the
// normalized address; on failure none is.
func (s *Service) StartAuth(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%q: %w", email, ErrInvalidEmail)
	}
	token, err := NewToken()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pruneLocked()
	s.otps[token] = pending{email: email, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()

	link := s.publicURL + "/otp?token=" + token
	if err := s.mailer.SendMagicLink(ctx, email, link); err != nil {
		s.mu.Lock()
		delete(s.otps, token)
		s.mu.Unlock()
		return fmt.Errorf("sending magic link: %w", err)
	}
	return nil
}

// ConsumeOTP redeems token exactly once.
//
// Postcondition: Returns the email the token was issued for and true, or
// false when the token is unknown, already used, or expired.
func (s *Service) ConsumeOTP(_ context.Context, token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.otps[token]
	if !ok {
		return "", false
	}
	delete(s.otps, token)
	if !s.now().Before(p.expires) {
		return "", false
	}
	return p.email, true
}

// Pending returns the number of outstanding one-time tokens.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.otps)
}

func (s *Service) pruneLocked() {
	now := s.now()
	for token, p := range s.otps {
		if !now.Before(p.expires) {
			delete(s.otps, token)
		}
	}
}

// Account returns the character bound to email.
func (s *Service) Account(ctx context.Context, email string) (entity.Identifier, bool, error) {
	a, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrAccountNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return a.Character, true, nil
}

// CreateAccount binds email to the character id.
func (s *Service) CreateAccount(ctx context.Context, email string, id entity.Identifier) error {
	return s.accounts.Put(ctx, Account{
		Email:     NormalizeEmail(email),
		Character: id,
		CreatedAt: s.now(),
	})
}

// StartSession issues a session token for id. Only its hash is stored.
func (s *Service) StartSession(ctx context.Context, id entity.Identifier) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	err = s.sessions.Put(ctx, Session{
		TokenHash: HashToken(token),
		Character: id,
		CreatedAt: s.now(),
	})
	if err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return token, nil
}

// ValidSession resolves a session token to its character.
func (s *Service) ValidSession(ctx context.Context, token string) (entity.Identifier, bool) {
	if token == "" {
		return "", false
	}
	sess, err := s.sessions.Get(ctx, HashToken(token))
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			s.logger.Warn("looking up session", zap.Error(err))
		}
		return "", false
	}
	return sess.Character, true
}

// EndSession revokes a session token.
func (s *Service) EndSession(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, HashToken(token)); err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return nil
}
