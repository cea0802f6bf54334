package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories/memory"
	"github.com/ArowuTest/clinic-membership-backend/internal/utils"
	"github.com/ArowuTest/clinic-membership-backend/pkg/jwt"
	"github.com/ArowuTest/clinic-membership-backend/pkg/smsgateway"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store    *memory.Store
	gateway  *smsgateway.MockGateway
	clock    *testClock
	tokens   *jwt.TokenService
	phones   *utils.PhoneNormalizer
	settings OTPSettings
	auth     AuthService
	users    UserService
	packages PackageService
	expiry   ExpiryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:   memory.NewStore(),
		gateway: smsgateway.NewMockGateway("test", nil),
		clock:   &testClock{now: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)},
		tokens:  jwt.NewTokenService("test-secret", "clinic", 24*time.Hour),
		phones:  utils.NewPhoneNormalizer(),
		settings: OTPSettings{
			Length:    5,
			TTL:       5 * time.Minute,
			HashCost:  bcrypt.MinCost,
			BrandName: "Kuwait Medical Clinic",
		},
	}
	opts := env.options()
	env.auth = env.newAuth(env.gateway, nil)
	env.users = NewUserService(env.store.Users(), env.phones, opts...)
	env.packages = NewPackageService(env.store.Users(), env.store.Packages(), env.store.Subscriptions(), opts...)
	env.expiry = NewExpiryService(env.store.Subscriptions(), env.store.OTPs(), opts...)
	return env
}

func (e *testEnv) options() []Option {
	return []Option{
		WithClock(e.clock.Now),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
	}
}

func (e *testEnv) newAuth(gateway smsgateway.Gateway, limiter OTPLimiter) AuthService {
	return NewAuthService(e.store.Users(), e.store.OTPs(), gateway, e.tokens, limiter, e.phones, e.settings, e.options()...)
}

var codePattern = regexp.MustCompile(`code is: (\d{5})\.`)

// lastCode returns the code in the most recent message sent to phone, which
// may be given in any accepted format.
func (e *testEnv) lastCode(t *testing.T, phone string) string {
	t.Helper()
	normalized, err := e.phones.Normalize(phone)
	require.NoError(t, err)
	msg, ok := e.gateway.Last()
	require.True(t, ok, "no message sent")
	require.Equal(t, normalized, msg.To)
	m := codePattern.FindStringSubmatch(msg.Message)
	require.Len(t, m, 2, msg.Message)
	return m[1]
}

// login runs the full OTP login for phone and returns the session
func (e *testEnv) login(t *testing.T, phone string) *models.LoginResult {
	t.Helper()
	ctx := context.Background()
	_, err := e.auth.SendOTP(ctx, phone, models.OTPPurposeLogin, "")
	require.NoError(t, err)
	result, err := e.auth.VerifyOTP(ctx, phone, e.lastCode(t, phone))
	require.NoError(t, err)
	return result
}

func (e *testEnv) seedPackage(t *testing.T, id string, duration int, active bool) *models.Package {
	t.Helper()
	pkg := &models.Package{
		ID:        id,
		Name:      "Premium " + id,
		Price:     120,
		Duration:  duration,
		IsActive:  false,
		CreatedAt: e.clock.Now(),
	}
	ctx := context.Background()
	require.NoError(t, e.store.Packages().Create(ctx, pkg))
	if active {
		require.NoError(t, e.store.Packages().Activate(ctx, id))
		pkg.IsActive = true
	}
	return pkg
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), err.Error())
}
