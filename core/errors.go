package core

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorCodeCredentialNotFound = "PROVISION_CREDENTIAL_NOT_FOUND"
	ErrorCodeRemoteValidation   = "PROVISION_REMOTE_VALIDATION"
	ErrorCodeRemoteTransport    = "PROVISION_REMOTE_TRANSPORT"
	ErrorCodeMalformedResponse  = "PROVISION_MALFORMED_RESPONSE"
	ErrorCodeBadInput           = "PROVISION_BAD_INPUT"
	ErrorCodeInstallFailed      = "PROVISION_INSTALL_FAILED"
	ErrorCodeOAuthInvalid       = "PROVISION_OAUTH_INVALID"
	ErrorCodeStorage            = "PROVISION_STORAGE_FAILURE"
	ErrorCodeInternal           = "PROVISION_INTERNAL_ERROR"
)

var (
	ErrCredentialNotFound = errors.New("core: credential not found")
	ErrRemoteValidation   = errors.New("core: remote validation failed")
	ErrRemoteTransport    = errors.New("core: remote transport failed")
	ErrMalformedResponse  = errors.New("core: malformed remote response")
	ErrOAuthInvalid       = errors.New("core: oauth callback invalid")
	ErrInstallFailed      = errors.New("core: install failed")
)

// StepError carries the saga step that produced a failure so callers can
// report it without parsing messages.
type StepError struct {
	Step       StepName
	UserErrors []UserError
	Cause      error
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	msg := "step " + string(e.Step) + " failed"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// FailedStep returns the step recorded on err, if any.
func FailedStep(err error) (StepName, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr != nil && stepErr.Step != "" {
		return stepErr.Step, true
	}
	return "", false
}

func NewBadInputError(message string, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fieldErrors := make([]goerrors.FieldError, 0, len(keys))
	for _, key := range keys {
		fieldErrors = append(fieldErrors, goerrors.FieldError{
			Field:   key,
			Message: fields[key],
		})
	}
	return goerrors.NewValidation(message, fieldErrors...).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorCodeBadInput).
		WithSeverity(goerrors.SeverityError)
}

func NewCredentialNotFoundError(tenant TenantID) error {
	return goerrors.Wrap(ErrCredentialNotFound, goerrors.CategoryNotFound, "no credential stored for shop").
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorCodeCredentialNotFound).
		WithMetadata(map[string]any{"shop": tenant.String()})
}

func NewRemoteValidationError(step StepName, userErrors []UserError) error {
	messages := make([]string, 0, len(userErrors))
	for _, userErr := range userErrors {
		messages = append(messages, userErr.String())
	}
	message := "remote validation failed"
	if len(messages) > 0 {
		message += ": " + strings.Join(messages, "; ")
	}
	stepErr := &StepError{
		Step:       step,
		UserErrors: append([]UserError(nil), userErrors...),
		Cause:      ErrRemoteValidation,
	}
	return goerrors.Wrap(stepErr, goerrors.CategoryValidation, message).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(ErrorCodeRemoteValidation).
		WithMetadata(map[string]any{"step": string(step)})
}

func NewRemoteTransportError(step StepName, cause error) error {
	message := "remote call failed"
	if cause != nil {
		message += ": " + cause.Error()
	}
	stepErr := &StepError{Step: step, Cause: errors.Join(ErrRemoteTransport, cause)}
	return goerrors.Wrap(stepErr, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorCodeRemoteTransport).
		WithMetadata(map[string]any{"step": string(step)})
}

func NewMalformedResponseError(step StepName, detail string) error {
	message := "malformed remote response"
	if detail = strings.TrimSpace(detail); detail != "" {
		message += ": " + detail
	}
	stepErr := &StepError{Step: step, Cause: ErrMalformedResponse}
	return goerrors.Wrap(stepErr, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorCodeMalformedResponse).
		WithMetadata(map[string]any{"step": string(step)})
}

func NewOAuthInvalidError(message string) error {
	return goerrors.Wrap(ErrOAuthInvalid, goerrors.CategoryAuth, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorCodeOAuthInvalid)
}

func NewInstallFailedError(cause error) error {
	message := "install failed"
	if cause != nil {
		message += ": " + cause.Error()
	}
	return goerrors.Wrap(errors.Join(ErrInstallFailed, cause), goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorCodeInstallFailed)
}

// NewDependencyError reports a handler or service built without one of its
// collaborators. It is a wiring bug, never caller-fixable.
func NewDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorCodeInternal)
}

func NewStorageError(cause error, message string) error {
	if cause == nil {
		return goerrors.New(message, goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(ErrorCodeStorage)
	}
	return goerrors.Wrap(cause, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorCodeStorage)
}

// MapError converts any error into the rich envelope used at the edges.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrCredentialNotFound):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryNotFound, err.Error()).
			WithCode(http.StatusBadRequest).
			WithTextCode(ErrorCodeCredentialNotFound))
	case errors.Is(err, ErrRemoteValidation):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithCode(http.StatusUnprocessableEntity).
			WithTextCode(ErrorCodeRemoteValidation))
	case errors.Is(err, ErrMalformedResponse):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryExternal, err.Error()).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorCodeMalformedResponse))
	case errors.Is(err, ErrRemoteTransport):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryExternal, err.Error()).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorCodeRemoteTransport))
	case errors.Is(err, ErrOAuthInvalid):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryAuth, err.Error()).
			WithCode(http.StatusBadRequest).
			WithTextCode(ErrorCodeOAuthInvalid))
	case errors.Is(err, ErrInstallFailed):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryExternal, err.Error()).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorCodeInstallFailed))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

// HTTPStatus returns the status code an edge handler should answer with.
func HTTPStatus(err error) int {
	mapped := MapError(err)
	if mapped == nil {
		return http.StatusOK
	}
	return mapped.Code
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = categoryHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return ErrorCodeBadInput
	case goerrors.CategoryValidation:
		return ErrorCodeRemoteValidation
	case goerrors.CategoryNotFound:
		return ErrorCodeCredentialNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorCodeOAuthInvalid
	case goerrors.CategoryExternal:
		return ErrorCodeRemoteTransport
	default:
		return ErrorCodeInternal
	}
}

func categoryHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
