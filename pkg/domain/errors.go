package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Code classifies request-validation and business-rule failures. None of
// them are transient; callers surface them verbatim.
type Code string

// Error codes reported by validators and the service layer.
const (
	CodeInvalidUpdateShape      Code = "invalid_update_shape"
	CodeMissingSpecialTag       Code = "missing_special_tag"
	CodeSpecialTagValueChanged  Code = "special_tag_value_changed"
	CodeMissingRequiredTag      Code = "missing_required_tag"
	CodeMissingVersionParameter Code = "missing_version_parameter"
	CodeEditConflict            Code = "edit_conflict"
	CodeNotFound                Code = "not_found"
	CodeInvalidTags             Code = "invalid_tags"
	CodeDuplicateVariant        Code = "duplicate_variant"
	CodeUnknownVariant          Code = "unknown_variant"
	CodeForbidden               Code = "forbidden"
)

// Sentinels matched with errors.Is against any *Error carrying the same code.
var (
	ErrInvalidUpdateShape      = errors.New("invalid update shape")
	ErrMissingSpecialTag       = errors.New("missing special tag")
	ErrSpecialTagValueChanged  = errors.New("special tag value changed")
	ErrMissingRequiredTag      = errors.New("missing required tag")
	ErrMissingVersionParameter = errors.New("missing version parameter")
	ErrEditConflict            = errors.New("edit conflict")
	ErrNotFound                = errors.New("not found")
	ErrInvalidTags             = errors.New("invalid tags")
	ErrDuplicateVariant        = errors.New("duplicate variant")
	ErrUnknownVariant          = errors.New("unknown variant")
	ErrForbidden               = errors.New("forbidden")
)

var sentinels = map[Code]error{
	CodeInvalidUpdateShape:      ErrInvalidUpdateShape,
	CodeMissingSpecialTag:       ErrMissingSpecialTag,
	CodeSpecialTagValueChanged:  ErrSpecialTagValueChanged,
	CodeMissingRequiredTag:      ErrMissingRequiredTag,
	CodeMissingVersionParameter: ErrMissingVersionParameter,
	CodeEditConflict:            ErrEditConflict,
	CodeNotFound:                ErrNotFound,
	CodeInvalidTags:             ErrInvalidTags,
	CodeDuplicateVariant:        ErrDuplicateVariant,
	CodeUnknownVariant:          ErrUnknownVariant,
	CodeForbidden:               ErrForbidden,
}

// Error carries enough structured detail for a client to resolve the failure
// without a second round trip.
type Error struct {
	Code   Code
	Detail string

	// Tag, OldValue and NewValue describe special tag violations.
	Tag      string
	OldValue string
	NewValue string
	// Fields lists the submitted top-level fields for shape violations.
	Fields []string
	// Required lists the full required tag set for create violations.
	Required []string
	// CurrentVersion is set for edit conflicts.
	CurrentVersion int64
}

func newError(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

func newErrorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.Detail }

// Unwrap exposes the per-code sentinel.
func (e *Error) Unwrap() error { return sentinels[e.Code] }

// AsError extracts a domain error from an arbitrary error chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// NotFound builds a NotFound error for the given record kind and lookup token.
func NotFound(kind EntityType, token string) *Error {
	return newErrorf(CodeNotFound, "No %s matches the given query: %s", kind, token)
}

// Forbidden builds an authorization failure naming the missing scope.
func Forbidden(scope string) *Error {
	return newErrorf(CodeForbidden, "This action requires the '%s' scope.", scope)
}

// DuplicateVariant reports a create whose composite key is already taken.
func DuplicateVariant(key VariantKey, existingID int64) *Error {
	return newErrorf(CodeDuplicateVariant, "A variant with id %s already exists (variant %d).", key, existingID)
}

// UnknownVariant reports a relation referencing a variant that does not exist.
func UnknownVariant(id int64) *Error {
	return newErrorf(CodeUnknownVariant, "Relation references unknown variant %d.", id)
}
