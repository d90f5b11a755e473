package accounts

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// ErrorKind is the closed set of failures the console reports.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindEmailInUse        ErrorKind = "email_in_use"
	KindInvalidEmail      ErrorKind = "invalid_email"
	KindWeakPassword      ErrorKind = "weak_password"
	KindInvalidCredential ErrorKind = "invalid_credential"
	KindTooManyRequests   ErrorKind = "too_many_requests"
	KindNetwork           ErrorKind = "network"
	// KindUnknownProvider is a provider error with no specific mapping.
	KindUnknownProvider ErrorKind = "unknown_provider"
	// KindInconsistent means an identity exists without its profile record.
	KindInconsistent  ErrorKind = "inconsistent"
	KindNotFound      ErrorKind = "not_found"
	KindAccessDenied  ErrorKind = "access_denied"
	KindNotSupported  ErrorKind = "not_supported"
	KindStore         ErrorKind = "store"
	KindUnknown       ErrorKind = "unknown"
	// KindUnauthenticated means the caller holds no valid admin session.
	KindUnauthenticated ErrorKind = "unauthenticated"
)

const (
	TextCodeValidation        = "ACCOUNT_VALIDATION_FAILED"
	TextCodeEmailInUse        = "ACCOUNT_EMAIL_IN_USE"
	TextCodeInvalidEmail      = "ACCOUNT_INVALID_EMAIL"
	TextCodeWeakPassword      = "ACCOUNT_WEAK_PASSWORD"
	TextCodeInvalidCredential = "ACCOUNT_INVALID_CREDENTIAL"
	TextCodeTooManyRequests   = "ACCOUNT_TOO_MANY_REQUESTS"
	TextCodeNetwork           = "ACCOUNT_NETWORK_FAILURE"
	TextCodeUnknownProvider   = "ACCOUNT_PROVIDER_ERROR"
	TextCodeInconsistent      = "ACCOUNT_INCONSISTENT_STATE"
	TextCodeNotFound          = "ACCOUNT_NOT_FOUND"
	TextCodeAccessDenied      = "ACCOUNT_ACCESS_DENIED"
	TextCodeUnauthenticated   = "ACCOUNT_UNAUTHENTICATED"
	TextCodeNotSupported      = "ACCOUNT_NOT_SUPPORTED"
	TextCodeStore             = "ACCOUNT_STORE_FAILURE"
)

type kindSpec struct {
	category goerrors.Category
	code     int
	textCode string
}

var kindSpecs = map[ErrorKind]kindSpec{
	KindValidation:        {goerrors.CategoryValidation, goerrors.CodeBadRequest, TextCodeValidation},
	KindEmailInUse:        {goerrors.CategoryConflict, goerrors.CodeConflict, TextCodeEmailInUse},
	KindInvalidEmail:      {goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeInvalidEmail},
	KindWeakPassword:      {goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeWeakPassword},
	KindInvalidCredential: {goerrors.CategoryAuth, goerrors.CodeUnauthorized, TextCodeInvalidCredential},
	KindTooManyRequests:   {goerrors.CategoryRateLimit, http.StatusTooManyRequests, TextCodeTooManyRequests},
	KindNetwork:           {goerrors.CategoryOperation, http.StatusBadGateway, TextCodeNetwork},
	KindUnknownProvider:   {goerrors.CategoryOperation, http.StatusBadGateway, TextCodeUnknownProvider},
	KindInconsistent:      {goerrors.CategoryInternal, http.StatusInternalServerError, TextCodeInconsistent},
	KindNotFound:          {goerrors.CategoryNotFound, goerrors.CodeNotFound, TextCodeNotFound},
	KindAccessDenied:      {goerrors.CategoryAuth, goerrors.CodeForbidden, TextCodeAccessDenied},
	KindUnauthenticated:   {goerrors.CategoryAuth, goerrors.CodeUnauthorized, TextCodeUnauthenticated},
	KindNotSupported:      {goerrors.CategoryOperation, http.StatusNotImplemented, TextCodeNotSupported},
	KindStore:             {goerrors.CategoryInternal, http.StatusInternalServerError, TextCodeStore},
}

var kindByTextCode = func() map[string]ErrorKind {
	out := make(map[string]ErrorKind, len(kindSpecs))
	for kind, spec := range kindSpecs {
		out[spec.textCode] = kind
	}
	return out
}()

// NewError builds a rich error of the given kind.
func NewError(kind ErrorKind, message string) *goerrors.Error {
	spec, ok := kindSpecs[kind]
	if !ok {
		return goerrors.New(message, goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError)
	}
	return goerrors.New(message, spec.category).
		WithTextCode(spec.textCode).
		WithCode(spec.code)
}

// WrapError wraps err as the given kind, keeping err as the cause. The
// returned error always reports kind, even when err carries its own.
func WrapError(err error, kind ErrorKind, message string) *goerrors.Error {
	richErr := NewError(kind, message)
	if err != nil {
		richErr.Source = err
	}
	return richErr
}

// ProviderError reports an auth provider failure. providerCode is the
// provider's own error code, kept as metadata for the logs.
func ProviderError(kind ErrorKind, provider, providerCode string, cause error) *goerrors.Error {
	message := "identity provider request failed"
	if cause != nil {
		message = cause.Error()
	}
	return WrapError(cause, kind, message).WithMetadata(map[string]any{
		"provider":      provider,
		"provider_code": providerCode,
	})
}

// KindOf recovers the ErrorKind carried by err. Errors that did not come
// from this package report KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if kind, ok := kindByTextCode[richErr.TextCode]; ok {
			return kind
		}
	}

	if repository.IsRecordNotFound(err) {
		return KindNotFound
	}

	return KindUnknown
}

// IsKind is shorthand for KindOf(err) == kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// ensureKind leaves classified errors alone and wraps the rest as fallback.
func ensureKind(err error, fallback ErrorKind, message string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return WrapError(err, fallback, message)
}

// StatusFor returns the HTTP status code associated with kind.
func StatusFor(kind ErrorKind) int {
	if spec, ok := kindSpecs[kind]; ok {
		return spec.code
	}
	return http.StatusInternalServerError
}
