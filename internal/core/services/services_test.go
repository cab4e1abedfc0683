package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/config"
	"natours-api/internal/pkg/jwt"
	"natours-api/internal/testutil"
)

// fakeNotifier records the emails it was asked to send
type fakeNotifier struct {
	mu       sync.Mutex
	fail     error
	resets   []string
	welcomes []string
}

func (n *fakeNotifier) SendWelcome(_ context.Context, to Recipient, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.welcomes = append(n.welcomes, to.Email)
	return nil
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, _ Recipient, resetURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.resets = append(n.resets, resetURL)
	return nil
}

func (n *fakeNotifier) lastReset() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resets) == 0 {
		return ""
	}
	return n.resets[len(n.resets)-1]
}

var errSMTPDown = errors.New("smtp down")

// clock is a settable time source shared by the token manager and services
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Now().Truncate(time.Second)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db       *gorm.DB
	cfg      *config.Config
	clock    *clock
	notifier *fakeNotifier
	users    repositories.UserRepository
	tours    repositories.TourRepository
	reviews  repositories.ReviewRepository
	bookings repositories.BookingRepository
	tokens   *jwt.Manager
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	cfg := testutil.Config()
	clk := newClock()
	notifier := &fakeNotifier{}
	users := repositories.NewUserRepository(db)
	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn).WithClock(clk.Now)

	return &testEnv{
		db:       db,
		cfg:      cfg,
		clock:    clk,
		notifier: notifier,
		users:    users,
		tours:    repositories.NewTourRepository(db),
		reviews:  repositories.NewReviewRepository(db),
		bookings: repositories.NewBookingRepository(db),
		tokens:   tokens,
		auth:     NewAuthService(users, tokens, notifier, cfg, zap.NewNop()).WithClock(clk.Now),
	}
}
