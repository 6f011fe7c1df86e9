package model

import "fmt"

// Kind is the taxonomy of domain error kinds from the error-handling design.
// It is the `error_code` surfaced in every uniform response shape.
type Kind string

const (
	KindAuthRequired              Kind = "AUTH_REQUIRED"
	KindAuthFailed                Kind = "AUTH_FAILED"
	KindInvalidArguments          Kind = "INVALID_ARGUMENTS"
	KindValidationError           Kind = "VALIDATION_ERROR"
	KindInvalidGlobalParameters   Kind = "INVALID_GLOBAL_PARAMETERS"
	KindInvalidFragmentParameters Kind = "INVALID_FRAGMENT_PARAMETERS"
	KindInvalidPosition           Kind = "INVALID_POSITION"
	KindInvalidAlias              Kind = "INVALID_ALIAS"
	KindAliasInUse                Kind = "ALIAS_IN_USE"
	KindTemplateNotFound          Kind = "TEMPLATE_NOT_FOUND"
	KindFragmentNotFound          Kind = "FRAGMENT_NOT_FOUND"
	KindStyleNotFound             Kind = "STYLE_NOT_FOUND"
	KindSessionNotFound           Kind = "SESSION_NOT_FOUND"
	KindNotFound                  Kind = "NOT_FOUND"
	KindSessionNotReady           Kind = "SESSION_NOT_READY"
	KindInvalidSessionState       Kind = "INVALID_SESSION_STATE"
	KindRenderFailed              Kind = "RENDER_FAILED"
	KindInvalidImageURL           Kind = "INVALID_IMAGE_URL"
	KindImageURLNotAccessible     Kind = "IMAGE_URL_NOT_ACCESSIBLE"
	KindInvalidImageContentType   Kind = "INVALID_IMAGE_CONTENT_TYPE"
	KindImageTooLarge             Kind = "IMAGE_TOO_LARGE"
	KindImageURLTimeout           Kind = "IMAGE_URL_TIMEOUT"
	KindImageValidationError      Kind = "IMAGE_VALIDATION_ERROR"
	KindGroupMismatch             Kind = "GROUP_MISMATCH"
	KindLoadError                 Kind = "LOAD_ERROR"
	KindDiskFull                  Kind = "DISK_FULL"
	KindCorruptMetadata           Kind = "CORRUPT_METADATA"
	KindPermissionDenied          Kind = "PERMISSION_DENIED"
	KindBlobTooLarge              Kind = "BLOB_TOO_LARGE"
	KindInternalError             Kind = "INTERNAL_ERROR"
)

// DomainError is the typed Result-style error every component returns
// instead of raising for expected, recoverable conditions. The dispatcher
// maps it directly onto the uniform {status,error_code,message,...} shape.
type DomainError struct {
	Kind             Kind
	Message          string
	RecoveryStrategy string
	Details          map[string]any
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError constructs a DomainError with optional details.
func NewError(kind Kind, message, recovery string, details map[string]any) *DomainError {
	return &DomainError{Kind: kind, Message: message, RecoveryStrategy: recovery, Details: details}
}

func ErrNotFound(kind Kind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message, RecoveryStrategy: "verify the identifier and group"}
}

func ErrSessionNotFound(identifier string) *DomainError {
	return &DomainError{
		Kind:             KindSessionNotFound,
		Message:          fmt.Sprintf("session %q not found", identifier),
		RecoveryStrategy: "verify the session id or alias and the caller's group",
	}
}

func ErrAuthRequired() *DomainError {
	return &DomainError{
		Kind:             KindAuthRequired,
		Message:          "this operation requires a bearer token",
		RecoveryStrategy: "supply auth_token, token, or an Authorization: Bearer header",
	}
}

func ErrAuthFailed(reason string) *DomainError {
	return &DomainError{
		Kind:             KindAuthFailed,
		Message:          "token verification failed: " + reason,
		RecoveryStrategy: "obtain a fresh token from the admin token endpoint",
	}
}

// AsDomainError unwraps err into a *DomainError, or wraps it as InternalError.
func AsDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if de, ok := err.(*DomainError); ok {
		return de
	}
	return &DomainError{
		Kind:             KindInternalError,
		Message:          err.Error(),
		RecoveryStrategy: "retry; if the problem persists contact the service operator",
	}
}
