package validation

import (
	"errors"
	"fmt"

	"kuyumcu-backend/internal/action"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct - request gövdesini şemaya göre doğrular; ilk ihlal edilen
// kuralın mesajıyla validation_error döner.
func Struct(s any) *action.Error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return action.NewError(action.CodeValidationError,
			fmt.Sprintf("%s alanı geçersiz (kural: %s)", fe.Field(), fe.Tag()))
	}
	return action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi")
}
