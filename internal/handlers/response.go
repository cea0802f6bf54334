package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/ArowuTest/clinic-membership-backend/internal/services"
	"github.com/ArowuTest/clinic-membership-backend/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrorBody is the error part of a failed response
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Response is the envelope of every API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

type errorMapping struct {
	status int
	code   string
}

var errorMappings = map[services.ErrorKind]errorMapping{
	services.KindInvalidPhoneFormat:   {http.StatusBadRequest, "INVALID_PHONE"},
	services.KindInvalidInput:         {http.StatusBadRequest, "VALIDATION_ERROR"},
	services.KindOTPNotFound:          {http.StatusBadRequest, "OTP_NOT_FOUND"},
	services.KindOTPOwnerMismatch:     {http.StatusBadRequest, "OTP_OWNER_MISMATCH"},
	services.KindOTPExpired:           {http.StatusBadRequest, "OTP_EXPIRED"},
	services.KindOTPAlreadyUsed:       {http.StatusBadRequest, "OTP_ALREADY_USED"},
	services.KindOTPCodeInvalid:       {http.StatusBadRequest, "INVALID_OTP"},
	services.KindOTPRateLimited:       {http.StatusTooManyRequests, "OTP_RATE_LIMITED"},
	services.KindMessagingUnavailable: {http.StatusBadRequest, "OTP_SEND_FAILED"},
	services.KindMessagingFailed:      {http.StatusBadRequest, "OTP_SEND_FAILED"},
	services.KindUserNotFound:         {http.StatusNotFound, "USER_NOT_FOUND"},
	services.KindUserInactive:         {http.StatusForbidden, "USER_INACTIVE"},
	services.KindPhoneTaken:           {http.StatusBadRequest, "PHONE_EXISTS"},
	services.KindActivePackageExists:  {http.StatusBadRequest, "ACTIVE_PACKAGE_EXISTS"},
	services.KindPackageNotFound:      {http.StatusBadRequest, "PACKAGE_NOT_FOUND"},
	services.KindPackageUnavailable:   {http.StatusBadRequest, "PACKAGE_UNAVAILABLE"},
	services.KindInvalidPaymentStatus: {http.StatusBadRequest, "INVALID_STATUS"},
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// respondServiceError maps a service error onto the envelope. Unexpected
// errors are logged and reported without details.
func respondServiceError(c *gin.Context, logger *zap.Logger, err error) {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		var limitErr *ratelimit.LimitError
		if errors.As(err, &limitErr) {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limitErr.RetryAfter.Seconds()))))
		}
		if m, ok := errorMappings[svcErr.Kind]; ok {
			respondError(c, m.status, m.code, svcErr.Message, nil)
			return
		}
	}

	logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString("requestID")),
		zap.Error(err))
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
}

// respondBindError reports a request body that failed to bind or validate
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON", nil)
		return
	}

	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "phone" {
			respondError(c, http.StatusBadRequest, "INVALID_PHONE", "Invalid phone number format", map[string]string{fe.Field(): fe.Tag()})
			return
		}
		details[fe.Field()] = validationMessage(fe)
	}
	respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
