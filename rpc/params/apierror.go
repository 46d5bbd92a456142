// Copyright 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package params

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// Error is the type of error returned by any call to the controller.
type Error struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Info    map[string]any `json:"info,omitempty"`
}

func (e Error) Error() string {
	return e.Message
}

// ErrorCode returns the error code associated with the error.
func (e Error) ErrorCode() string {
	return e.Code
}

// ErrorInfo returns the error information associated with the error.
func (e Error) ErrorInfo() map[string]any {
	return e.Info
}

// UnmarshalInfo attempts to unmarshal the information contained in the Info
// field of an Error into an object instance a pointer to which is passed
// via the to argument.
func (e Error) UnmarshalInfo(to any) error {
	data, err := json.Marshal(e.Info)
	if err != nil {
		return errors.Annotate(err, "could not marshal error information")
	}
	if err := json.Unmarshal(data, to); err != nil {
		return errors.Annotate(err, "could not unmarshal error information to provided target")
	}
	return nil
}

// GoString implements fmt.GoStringer. It means that a *Error shows its
// contents correctly when printed with %#v.
func (e Error) GoString() string {
	return fmt.Sprintf("&params.Error{Message: %q, Code: %q}", e.Message, e.Code)
}

// The Code constants hold error codes for well known errors.
const (
	CodeNotFound            = "not found"
	CodeUnauthorized        = "unauthorized access"
	CodeLoginExpired        = "login expired"
	CodeNoCreds             = "no credentials provided"
	CodeNotImplemented      = "not implemented"
	CodeBadRequest          = "bad request"
	CodeForbidden           = "forbidden"
	CodeTryAgain            = "try again"
	CodeUpgradeInProgress   = "upgrade in progress"
	CodeDischargeRequired   = "macaroon discharge required"
	CodeRedirect            = "redirection required"
	CodeIncompatibleClient  = "incompatible client"
	CodeModelNotFound       = "model not found"
	CodeNotSupported        = "not supported"
	CodeNotValid            = "not valid"
	CodeAlreadyExists       = "already exists"
	CodeStopped             = "stopped"
	CodeDead                = "dead"
	CodeOperationBlocked    = "operation is blocked"
	CodeNotProvisioned      = "not provisioned"
	CodeQuotaLimitExceeded  = "quota limit exceeded"
	CodeMethodNotAllowed    = "method not allowed"
	CodeNotYetAvailable     = "not yet available"
	CodeUserNotFound        = "user not found"
	CodeNotAssigned         = "not assigned"
	CodeCompatibilityIssues = "compatibility issues"
)

// ErrCode returns the error code associated with
// the given error, or the empty string if there
// is none.
func ErrCode(err error) string {
	type ErrorCoder interface {
		ErrorCode() string
	}
	var coder ErrorCoder
	if errors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

// IsCodeRedirect reports whether err asks the client to connect to a
// different controller.
func IsCodeRedirect(err error) bool {
	return ErrCode(err) == CodeRedirect
}

// IsCodeDischargeRequired reports whether err asks the client to
// discharge a macaroon before logging in.
func IsCodeDischargeRequired(err error) bool {
	return ErrCode(err) == CodeDischargeRequired
}

// IsCodeNotImplemented reports whether err means the controller does not
// know the requested facade or method.
func IsCodeNotImplemented(err error) bool {
	return ErrCode(err) == CodeNotImplemented
}

// IsCodeUnauthorized reports whether err is an authorization failure.
func IsCodeUnauthorized(err error) bool {
	return ErrCode(err) == CodeUnauthorized
}

// TranslateWellKnownError maps controller error codes onto the
// equivalent juju/errors types, so that callers can use errors.Is.
func TranslateWellKnownError(err error) error {
	code := ErrCode(err)
	var kind errors.ConstError
	switch code {
	case CodeNotFound, CodeModelNotFound:
		kind = errors.NotFound
	case CodeUserNotFound:
		kind = errors.UserNotFound
	case CodeUnauthorized:
		kind = errors.Unauthorized
	case CodeNotImplemented:
		kind = errors.NotImplemented
	case CodeAlreadyExists:
		kind = errors.AlreadyExists
	case CodeNotSupported:
		kind = errors.NotSupported
	case CodeNotValid:
		kind = errors.NotValid
	case CodeNotProvisioned:
		kind = errors.NotProvisioned
	case CodeNotAssigned:
		kind = errors.NotAssigned
	case CodeBadRequest:
		kind = errors.BadRequest
	case CodeMethodNotAllowed:
		kind = errors.MethodNotAllowed
	case CodeForbidden:
		kind = errors.Forbidden
	case CodeQuotaLimitExceeded:
		kind = errors.QuotaLimitExceeded
	case CodeNotYetAvailable:
		kind = errors.NotYetAvailable
	default:
		return err
	}
	return errors.WithType(err, kind)
}

// ErrorResult holds the error status of a single operation.
type ErrorResult struct {
	Error *Error `json:"error,omitempty"`
}

// ErrorResults holds the results of calling a bulk operation which
// returns no data, only an error result. The order and
// number of elements matches the operations specified in the request.
type ErrorResults struct {
	// Results contains the error results from each operation.
	Results []ErrorResult `json:"results"`
}

// OneError returns the error from the result
// of a bulk operation on a single value.
func (result ErrorResults) OneError() error {
	if n := len(result.Results); n != 1 {
		return errors.Errorf("expected 1 result, got %d", n)
	}
	if err := result.Results[0].Error; err != nil {
		return err
	}
	return nil
}

// Combine returns one error from a list of errors
// or nil if none of the errors are non-nil.
func (result ErrorResults) Combine() error {
	var errorStrings []string
	for _, r := range result.Results {
		if r.Error != nil {
			errorStrings = append(errorStrings, r.Error.Error())
		}
	}
	if errorStrings != nil {
		return errors.New(strings.Join(errorStrings, "\n"))
	}
	return nil
}
