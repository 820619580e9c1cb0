package action

import "github.com/gofiber/fiber/v2"

// ErrorCode - istemciye dönen sabit hata kodları
type ErrorCode string

const (
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeValidationError        ErrorCode = "validation_error"
	CodeNotFound               ErrorCode = "not_found"
	CodeDatabaseError          ErrorCode = "database_error"
	CodeDuplicateName          ErrorCode = "duplicate_name"
	CodeHasBalance             ErrorCode = "has_balance"
	CodeInsufficientBudget     ErrorCode = "insufficient_budget"
	CodeConcurrentModification ErrorCode = "concurrent_modification"
	CodeUnexpectedError        ErrorCode = "unexpected_error"
)

type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Result - her mutasyon operasyonunun döndürdüğü zarf:
// {success:true, data, message?} veya {success:false, error, code}
type Result struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
	Code    ErrorCode `json:"code,omitempty"`
}

func OK(data any, message string) Result {
	return Result{Success: true, Data: data, Message: message}
}

func Fail(err *Error) Result {
	return Result{Success: false, Error: err.Message, Code: err.Code}
}

func httpStatus(code ErrorCode) int {
	switch code {
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeValidationError:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeDuplicateName, CodeHasBalance, CodeInsufficientBudget, CodeConcurrentModification:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func Respond(c *fiber.Ctx, data any, message string) error {
	return c.JSON(OK(data, message))
}

func Created(c *fiber.Ctx, data any, message string) error {
	return c.Status(fiber.StatusCreated).JSON(OK(data, message))
}

func RespondError(c *fiber.Ctx, err *Error) error {
	return c.Status(httpStatus(err.Code)).JSON(Fail(err))
}
