package services

import (
	"fmt"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
)

func otpMessage(brand string, purpose models.OTPPurpose, code string, ttl time.Duration) string {
	minutes := int(ttl.Minutes())
	switch purpose {
	case models.OTPPurposeLogin:
		return fmt.Sprintf("Your %s login code is: %s. This code expires in %d minutes.", brand, code, minutes)
	case models.OTPPurposePhoneChange:
		return fmt.Sprintf("Your %s phone verification code is: %s. This code expires in %d minutes.", brand, code, minutes)
	default:
		return fmt.Sprintf("Your %s verification code is: %s. This code expires in %d minutes.", brand, code, minutes)
	}
}
