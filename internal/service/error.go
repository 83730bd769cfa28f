package service

import (
	"github.com/giantswarm/microerror"

	"github.com/studiowebux/k6ui/internal/k6"
	"github.com/studiowebux/k6ui/internal/loadtest"
	"github.com/studiowebux/k6ui/internal/script"
)

var invalidConfigError = &microerror.Error{
	Kind: "invalidConfigError",
}

// IsInvalidConfig asserts invalidConfigError.
func IsInvalidConfig(err error) bool {
	return microerror.Cause(err) == invalidConfigError
}

var tooManyRunsError = &microerror.Error{
	Kind: "tooManyRunsError",
}

// IsTooManyRuns asserts tooManyRunsError.
func IsTooManyRuns(err error) bool {
	return microerror.Cause(err) == tooManyRunsError
}

// IsInvalidInput reports whether err was caused by the submitted
// configuration.
func IsInvalidInput(err error) bool {
	return loadtest.IsValidation(err) || script.IsInvalidInput(err)
}

// IsBinaryNotFound reports whether k6 could not be found or started.
func IsBinaryNotFound(err error) bool {
	return k6.IsBinaryNotFound(err)
}

// IsRunFailure reports whether k6 started but did not complete cleanly.
func IsRunFailure(err error) bool {
	return k6.IsRunFailure(err)
}
