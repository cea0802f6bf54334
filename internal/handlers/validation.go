package handlers

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ArowuTest/clinic-membership-backend/internal/utils"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the "phone" tag on gin's validator and makes
// field errors report JSON names.
func RegisterValidators(phones *utils.PhoneNormalizer) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	return v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phones.Valid(fl.Field().String())
	})
}
