package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/api/routes"
	"github.com/ArowuTest/clinic-membership-backend/internal/handlers"
	"github.com/ArowuTest/clinic-membership-backend/internal/middleware"
	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories/memory"
	"github.com/ArowuTest/clinic-membership-backend/internal/services"
	"github.com/ArowuTest/clinic-membership-backend/internal/utils"
	"github.com/ArowuTest/clinic-membership-backend/pkg/jwt"
	"github.com/ArowuTest/clinic-membership-backend/pkg/ratelimit"
	"github.com/ArowuTest/clinic-membership-backend/pkg/smsgateway"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var phones = utils.NewPhoneNormalizer()

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := handlers.RegisterValidators(phones); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type apiEnv struct {
	router  *gin.Engine
	store   *memory.Store
	gateway *smsgateway.MockGateway
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	return buildAPIEnv(t, nil)
}

func buildAPIEnv(t *testing.T, limiter services.OTPLimiter) *apiEnv {
	t.Helper()

	logger := zap.NewNop()
	store := memory.NewStore()
	gateway := smsgateway.NewMockGateway("test", logger)
	tokens := jwt.NewTokenService("handler-secret", "clinic", time.Hour)
	reg := prometheus.NewRegistry()
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(services.NewMetrics(reg)),
	}

	authService := services.NewAuthService(store.Users(), store.OTPs(), gateway, tokens, limiter, phones, services.OTPSettings{
		Length:    5,
		TTL:       5 * time.Minute,
		HashCost:  bcrypt.MinCost,
		BrandName: "Kuwait Medical Clinic",
	}, opts...)
	userService := services.NewUserService(store.Users(), phones, opts...)
	packageService := services.NewPackageService(store.Users(), store.Packages(), store.Subscriptions(), opts...)

	router := routes.SetupRouter(routes.HandlerDependencies{
		AuthHandler:    handlers.NewAuthHandler(authService, logger),
		UserHandler:    handlers.NewUserHandler(userService, authService, logger),
		PackageHandler: handlers.NewPackageHandler(packageService, logger),
		HealthHandler:  handlers.NewHealthHandler(nil, "test", logger),
		Tokens:         tokens,
		Users:          authService,
		Logger:         logger,
		AllowedOrigins: []string{"*"},
		HTTPMetrics:    middleware.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	return &apiEnv{router: router, store: store, gateway: gateway}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode(t *testing.T, raw json.RawMessage, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, into), string(raw))
}

var codePattern = regexp.MustCompile(`code is: (\d{5})\.`)

func (e *apiEnv) lastCode(t *testing.T) string {
	t.Helper()
	msg, ok := e.gateway.Last()
	require.True(t, ok)
	m := codePattern.FindStringSubmatch(msg.Message)
	require.Len(t, m, 2)
	return m[1]
}

func (e *apiEnv) login(t *testing.T, phone string) string {
	t.Helper()
	status, _ := e.do(t, http.MethodPost, "/api/auth/send-otp", "", gin.H{"phone_number": phone})
	require.Equal(t, http.StatusOK, status)

	status, resp := e.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{"phone_number": phone, "code": e.lastCode(t)})
	require.Equal(t, http.StatusOK, status)
	var result models.LoginResult
	decode(t, resp.Data, &result)
	require.NotEmpty(t, result.Token)
	return result.Token
}

func (e *apiEnv) seedPackage(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.Packages().Create(ctx, &models.Package{
		ID:        id,
		Name:      "Annual Membership",
		Price:     150,
		Duration:  365,
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, e.store.Packages().Activate(ctx, id))
}

func TestHealthAndVersion(t *testing.T) {
	env := newAPIEnv(t)

	status, resp := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Contains(t, string(resp.Data), `"database":"in-memory"`)

	status, resp = env.do(t, http.MethodGet, "/api/version", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp.Data), `"version":"test"`)
}

func TestUnknownRoute(t *testing.T) {
	env := newAPIEnv(t)

	status, resp := env.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestSendOTP(t *testing.T) {
	env := newAPIEnv(t)

	status, resp := env.do(t, http.MethodPost, "/api/auth/send-otp", "", gin.H{"phone_number": "9655 000 1234"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OTP sent successfully", resp.Message)
	var result models.SendOTPResult
	decode(t, resp.Data, &result)
	assert.Equal(t, 300, result.ExpiresIn)

	msg, ok := env.gateway.Last()
	require.True(t, ok)
	assert.Equal(t, "+96550001234", msg.To)
}

func TestSendOTPRejectsBadInput(t *testing.T) {
	env := newAPIEnv(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"malformed json", `{"phone_number":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing phone", gin.H{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"invalid phone", gin.H{"phone_number": "12345"}, http.StatusBadRequest, "INVALID_PHONE"},
		{"unknown purpose", gin.H{"phone_number": "+96550001234", "purpose": "reset"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"phone change purpose", gin.H{"phone_number": "+96550001234", "purpose": "phone_change"}, http.StatusBadRequest, "INVALID_PURPOSE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := env.do(t, http.MethodPost, "/api/auth/send-otp", "", tt.body)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
	assert.Empty(t, env.gateway.Sent())
}

func TestVerifyOTP(t *testing.T) {
	env := newAPIEnv(t)

	status, resp := env.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{"phone_number": "+96550001234", "code": "12345"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "OTP_NOT_FOUND", resp.Error.Code)

	status, _ = env.do(t, http.MethodPost, "/api/auth/send-otp", "", gin.H{"phone_number": "+96550001234"})
	require.Equal(t, http.StatusOK, status)
	code := env.lastCode(t)

	wrong := "00000"
	if code == wrong {
		wrong = "11111"
	}
	status, resp = env.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{"phone_number": "+96550001234", "code": wrong})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_OTP", resp.Error.Code)

	status, resp = env.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{"phone_number": "+96550001234", "code": "12ab5"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "code")

	status, resp = env.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{"phone_number": "+96550001234", "code": code})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Login successful", resp.Message)
	var result models.LoginResult
	decode(t, resp.Data, &result)
	assert.True(t, result.IsNewUser)
	assert.Equal(t, "+96550001234", result.User.PhoneNumber)

	status, resp = env.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{"phone_number": "+96550001234", "code": code})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "OTP_NOT_FOUND", resp.Error.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newAPIEnv(t)

	status, resp := env.do(t, http.MethodGet, "/api/user/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	status, resp = env.do(t, http.MethodGet, "/api/user/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", resp.Error.Code)

	other := jwt.NewTokenService("other-secret", "clinic", time.Hour)
	forged, _, err := other.Issue("u1", "+96550001234", time.Now())
	require.NoError(t, err)
	status, resp = env.do(t, http.MethodGet, "/api/packages/history", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", resp.Error.Code)
}

func TestProfile(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "+96550001234")

	status, resp := env.do(t, http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	var profile models.UserProfile
	decode(t, resp.Data, &profile)
	assert.Nil(t, profile.Name)

	status, resp = env.do(t, http.MethodPut, "/api/user/profile", token, gin.H{"name": "Fatima", "national_id": "289010112345"})
	require.Equal(t, http.StatusOK, status)
	decode(t, resp.Data, &profile)
	require.NotNil(t, profile.Name)
	assert.Equal(t, "Fatima", *profile.Name)
	require.NotNil(t, profile.NationalID)
	assert.Equal(t, "289010112345", *profile.NationalID)

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	status, resp = env.do(t, http.MethodPut, "/api/user/profile", token, gin.H{"name": string(long)})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "name")
}

func TestPhoneChange(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "+96550001234")
	env.login(t, "+96550009999")

	status, resp := env.do(t, http.MethodPost, "/api/user/send-phone-change-otp", token, gin.H{"new_phone_number": "+96550009999"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "PHONE_EXISTS", resp.Error.Code)

	status, _ = env.do(t, http.MethodPost, "/api/user/send-phone-change-otp", token, gin.H{"new_phone_number": "+96560001111"})
	require.Equal(t, http.StatusOK, status)
	code := env.lastCode(t)

	status, resp = env.do(t, http.MethodPut, "/api/user/phone", token, gin.H{"new_phone_number": "+96560001111", "otp_code": code})
	require.Equal(t, http.StatusOK, status)
	var profile models.UserProfile
	decode(t, resp.Data, &profile)
	assert.Equal(t, "+96560001111", profile.PhoneNumber)

	status, resp = env.do(t, http.MethodPut, "/api/user/phone", token, gin.H{"new_phone_number": "+96560001111", "otp_code": code})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "OTP_NOT_FOUND", resp.Error.Code)
}

func TestPhoneChangeLosesToNewOwner(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "+96550001234")

	status, _ := env.do(t, http.MethodPost, "/api/user/send-phone-change-otp", token, gin.H{"new_phone_number": "+96560001111"})
	require.Equal(t, http.StatusOK, status)
	code := env.lastCode(t)

	// Someone else registers the number before the change is confirmed.
	env.login(t, "+96560001111")

	status, resp := env.do(t, http.MethodPut, "/api/user/phone", token, gin.H{"new_phone_number": "+96560001111", "otp_code": code})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "PHONE_EXISTS", resp.Error.Code)

	status, resp = env.do(t, http.MethodPut, "/api/user/phone", token, gin.H{"new_phone_number": "+96560001111", "otp_code": code})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "OTP_NOT_FOUND", resp.Error.Code)

	status, resp = env.do(t, http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	var profile models.UserProfile
	decode(t, resp.Data, &profile)
	assert.Equal(t, "+96550001234", profile.PhoneNumber)
}

func TestPackagePurchaseFlow(t *testing.T) {
	env := newAPIEnv(t)

	status, resp := env.do(t, http.MethodGet, "/api/packages/available", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NO_PACKAGES_AVAILABLE", resp.Error.Code)

	env.seedPackage(t, "pkg-annual")
	status, resp = env.do(t, http.MethodGet, "/api/packages/available", "", nil)
	require.Equal(t, http.StatusOK, status)
	var available struct {
		Package models.Package `json:"package"`
	}
	decode(t, resp.Data, &available)
	assert.Equal(t, "pkg-annual", available.Package.ID)

	token := env.login(t, "+96550001234")
	purchase := gin.H{
		"package_id": "pkg-annual",
		"user_info":  gin.H{"name": "Fatima", "national_id": "289010112345"},
	}

	status, resp = env.do(t, http.MethodPost, "/api/packages/purchase", "", purchase)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, resp = env.do(t, http.MethodPost, "/api/packages/purchase", token, gin.H{"package_id": "pkg-annual"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	status, resp = env.do(t, http.MethodPost, "/api/packages/purchase", token, purchase)
	require.Equal(t, http.StatusOK, status, resp.Error)
	var purchased struct {
		Subscription models.SubscriptionView `json:"subscription"`
	}
	decode(t, resp.Data, &purchased)
	sub := purchased.Subscription
	assert.Equal(t, models.PaymentStatusPending, sub.PaymentStatus)
	assert.True(t, sub.IsActive)
	assert.Equal(t, 365, sub.RemainingDays)

	status, resp = env.do(t, http.MethodPost, "/api/packages/purchase", token, purchase)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ACTIVE_PACKAGE_EXISTS", resp.Error.Code)

	status, resp = env.do(t, http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	var profile models.UserProfile
	decode(t, resp.Data, &profile)
	require.NotNil(t, profile.Name)
	assert.Equal(t, "Fatima", *profile.Name)

	statusPath := "/api/packages/subscription/" + sub.SubscriptionID + "/status"
	status, resp = env.do(t, http.MethodPut, statusPath, token, gin.H{"payment_status": "refunded"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_STATUS", resp.Error.Code)

	status, resp = env.do(t, http.MethodPut, "/api/packages/subscription/missing/status", token, gin.H{"payment_status": "completed"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "UPDATE_FAILED", resp.Error.Code)

	status, resp = env.do(t, http.MethodPut, statusPath, token, gin.H{"payment_status": "completed"})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp.Data), `"payment_status":"completed"`)

	status, resp = env.do(t, http.MethodGet, "/api/packages/history", token, nil)
	require.Equal(t, http.StatusOK, status)
	var history struct {
		History []models.SubscriptionView `json:"history"`
	}
	decode(t, resp.Data, &history)
	require.Len(t, history.History, 1)
	assert.Equal(t, sub.SubscriptionID, history.History[0].SubscriptionID)
	assert.Equal(t, models.PaymentStatusCompleted, history.History[0].PaymentStatus)
}

func TestPurchaseUnknownPackage(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "+96550001234")

	status, resp := env.do(t, http.MethodPost, "/api/packages/purchase", token, gin.H{
		"package_id": "missing",
		"user_info":  gin.H{"name": "Fatima", "national_id": "289010112345"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "PACKAGE_NOT_FOUND", resp.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.do(t, http.MethodGet, "/api/health", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `clinic_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}

func TestSendOTPRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := buildAPIEnv(t, ratelimit.NewLimiter(client, "otp", time.Hour, 5, time.Minute, 0))
	body := gin.H{"phone_number": "+96550001234"}

	status, _ := env.do(t, http.MethodPost, "/api/auth/send-otp", "", body)
	require.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/send-otp", bytes.NewReader([]byte(`{"phone_number":"+96550001234"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "OTP_RATE_LIMITED")
	assert.Len(t, env.gateway.Sent(), 1)
}
