package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/pkg/ratelimit"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	phoneA = "+96550001234"
	phoneB = "+96560009876"
)

func TestSendOTP(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.auth.SendOTP(context.Background(), "5000 1234", models.OTPPurposeLogin, "")
	require.NoError(t, err)
	assert.Equal(t, 300, result.ExpiresIn)

	msg, ok := env.gateway.Last()
	require.True(t, ok)
	assert.Equal(t, phoneA, msg.To)
	assert.Regexp(t, `^Your Kuwait Medical Clinic login code is: \d{5}\. This code expires in 5 minutes\.$`, msg.Message)

	otp, err := env.store.OTPs().FindLatestValid(context.Background(), phoneA, models.OTPPurposeLogin, env.clock.Now())
	require.NoError(t, err)
	assert.NotEqual(t, env.lastCode(t, phoneA), otp.CodeHash)
	assert.Equal(t, env.clock.Now().Add(5*time.Minute), otp.ExpiresAt)
	assert.Empty(t, otp.UserID)
}

func TestSendOTPRejectsInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.SendOTP(ctx, "12345", models.OTPPurposeLogin, "")
	requireKind(t, err, KindInvalidPhoneFormat)

	_, err = env.auth.SendOTP(ctx, phoneA, models.OTPPurpose("reset"), "")
	requireKind(t, err, KindInvalidInput)

	_, err = env.auth.SendOTP(ctx, phoneA, models.OTPPurposePhoneChange, "")
	requireKind(t, err, KindInvalidInput)

	assert.Empty(t, env.gateway.Sent())
}

func TestSendOTPInvalidatesPreviousCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	require.NoError(t, err)
	first := env.lastCode(t, phoneA)

	env.clock.Advance(time.Second)
	_, err = env.auth.SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	require.NoError(t, err)
	second := env.lastCode(t, phoneA)

	if first != second {
		_, err = env.auth.VerifyOTP(ctx, phoneA, first)
		requireKind(t, err, KindOTPCodeInvalid)
	}

	_, err = env.auth.VerifyOTP(ctx, phoneA, second)
	require.NoError(t, err)
}

func TestSendOTPInvalidationIsPerPurpose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.login(t, phoneB)

	_, err := env.auth.SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	require.NoError(t, err)
	loginCode := env.lastCode(t, phoneA)

	env.clock.Advance(time.Second)
	_, err = env.auth.SendOTP(ctx, phoneA, models.OTPPurposePhoneChange, owner.User.ID)
	require.NoError(t, err)
	msg, _ := env.gateway.Last()
	assert.Contains(t, msg.Message, "phone verification code")

	_, err = env.auth.VerifyOTP(ctx, phoneA, loginCode)
	assert.NoError(t, err)
}

func TestVerifyOTPCreatesUserOnFirstLogin(t *testing.T) {
	env := newTestEnv(t)

	first := env.login(t, "+965 5000 1234")
	assert.True(t, first.IsNewUser)
	assert.Equal(t, phoneA, first.User.PhoneNumber)
	assert.True(t, first.User.IsActive)
	assert.Nil(t, first.User.ActivePackage)
	assert.Equal(t, env.clock.Now().Add(24*time.Hour), first.ExpiresAt)

	claims, err := env.tokens.Parse(first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, claims.Subject)
	assert.Equal(t, phoneA, claims.PhoneNumber)

	env.clock.Advance(time.Minute)
	second := env.login(t, phoneA)
	assert.False(t, second.IsNewUser)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestVerifyOTPFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.VerifyOTP(ctx, phoneA, "12345")
	requireKind(t, err, KindOTPNotFound)

	_, err = env.auth.VerifyOTP(ctx, "not-a-phone", "12345")
	requireKind(t, err, KindInvalidPhoneFormat)

	_, err = env.auth.SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	require.NoError(t, err)
	code := env.lastCode(t, phoneA)

	wrong := "00000"
	if code == wrong {
		wrong = "11111"
	}
	_, err = env.auth.VerifyOTP(ctx, phoneA, wrong)
	requireKind(t, err, KindOTPCodeInvalid)

	// A wrong guess does not consume the code.
	_, err = env.auth.VerifyOTP(ctx, phoneA, code)
	require.NoError(t, err)

	_, err = env.auth.VerifyOTP(ctx, phoneA, code)
	requireKind(t, err, KindOTPNotFound)
}

func TestVerifyOTPExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	require.NoError(t, err)
	code := env.lastCode(t, phoneA)

	env.clock.Advance(5*time.Minute + time.Second)
	_, err = env.auth.VerifyOTP(ctx, phoneA, code)
	requireKind(t, err, KindOTPExpired)
}

func TestVerifyOTPAtExpiryInstant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	require.NoError(t, err)
	code := env.lastCode(t, phoneA)

	env.clock.Advance(5*time.Minute - time.Nanosecond)
	otp, err := env.store.OTPs().FindLatestValid(ctx, phoneA, models.OTPPurposeLogin, env.clock.Now())
	require.NoError(t, err)
	assert.False(t, otp.IsExpired(env.clock.Now()))

	env.clock.Advance(time.Nanosecond)
	_, err = env.auth.VerifyOTP(ctx, phoneA, code)
	requireKind(t, err, KindOTPExpired)

	n, err := env.expiry.CleanupOTPs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestVerifyOTPConcurrentSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	require.NoError(t, err)
	code := env.lastCode(t, phoneA)

	var (
		wg        sync.WaitGroup
		successes int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.auth.VerifyOTP(ctx, phoneA, code); err == nil {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes)
}

func TestVerifyOTPInactiveUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := models.NewUser("inactive-user", phoneA, env.clock.Now())
	user.IsActive = false
	_, _, err := env.store.Users().FindOrCreateByPhone(ctx, user)
	require.NoError(t, err)

	_, err = env.auth.SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	require.NoError(t, err)
	_, err = env.auth.VerifyOTP(ctx, phoneA, env.lastCode(t, phoneA))
	requireKind(t, err, KindUserInactive)

	_, err = env.auth.CurrentUser(ctx, "inactive-user")
	requireKind(t, err, KindUserInactive)

	_, err = env.auth.CurrentUser(ctx, "missing")
	requireKind(t, err, KindUserNotFound)
}

func TestSendOTPMessaging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.newAuth(nil, nil).SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	requireKind(t, err, KindMessagingUnavailable)

	env.gateway.Err = errors.New("provider down")
	_, err = env.auth.SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	requireKind(t, err, KindMessagingFailed)

	// The code was stored before dispatch failed.
	otp, err := env.store.OTPs().FindLatestValid(ctx, phoneA, models.OTPPurposeLogin, env.clock.Now())
	require.NoError(t, err)
	assert.False(t, otp.IsUsed)
}

func TestSendOTPRateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	auth := env.newAuth(env.gateway, ratelimit.NewLimiter(client, "otp", time.Hour, 5, time.Minute, 0))

	_, err := auth.SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	require.NoError(t, err)

	_, err = auth.SendOTP(ctx, phoneA, models.OTPPurposeLogin, "")
	requireKind(t, err, KindOTPRateLimited)
	assert.Len(t, env.gateway.Sent(), 1)

	_, err = auth.SendOTP(ctx, phoneB, models.OTPPurposeLogin, "")
	assert.NoError(t, err)
}

func TestPhoneChangeOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.login(t, phoneA)
	bob := env.login(t, phoneB)
	newPhone := "+96590001111"

	_, err := env.auth.SendOTP(ctx, phoneB, models.OTPPurposePhoneChange, alice.User.ID)
	requireKind(t, err, KindPhoneTaken)

	_, err = env.auth.SendOTP(ctx, phoneA, models.OTPPurposePhoneChange, alice.User.ID)
	requireKind(t, err, KindInvalidInput)

	_, err = env.auth.SendOTP(ctx, newPhone, models.OTPPurposePhoneChange, alice.User.ID)
	require.NoError(t, err)
	code := env.lastCode(t, newPhone)

	otp, err := env.store.OTPs().FindLatestValid(ctx, newPhone, models.OTPPurposePhoneChange, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, alice.User.ID, otp.UserID)

	err = env.auth.VerifyPhoneChangeOTP(ctx, newPhone, code, bob.User.ID)
	requireKind(t, err, KindOTPOwnerMismatch)

	// A login verify never sees phone_change codes.
	_, err = env.auth.VerifyOTP(ctx, newPhone, code)
	requireKind(t, err, KindOTPNotFound)

	require.NoError(t, env.auth.VerifyPhoneChangeOTP(ctx, newPhone, code, alice.User.ID))
	err = env.auth.VerifyPhoneChangeOTP(ctx, newPhone, code, alice.User.ID)
	requireKind(t, err, KindOTPNotFound)
}
