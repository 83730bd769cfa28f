package k6

import "github.com/giantswarm/microerror"

var invalidConfigError = &microerror.Error{
	Kind: "invalidConfigError",
}

// IsInvalidConfig asserts invalidConfigError.
func IsInvalidConfig(err error) bool {
	return microerror.Cause(err) == invalidConfigError
}

var binaryNotFoundError = &microerror.Error{
	Kind: "binaryNotFoundError",
}

// IsBinaryNotFound asserts binaryNotFoundError.
func IsBinaryNotFound(err error) bool {
	return microerror.Cause(err) == binaryNotFoundError
}

var executionFailedError = &microerror.Error{
	Kind: "executionFailedError",
}

// IsExecutionFailed asserts executionFailedError.
func IsExecutionFailed(err error) bool {
	return microerror.Cause(err) == executionFailedError
}

var timeoutError = &microerror.Error{
	Kind: "timeoutError",
}

// IsTimeout asserts timeoutError.
func IsTimeout(err error) bool {
	return microerror.Cause(err) == timeoutError
}

var outputOverflowError = &microerror.Error{
	Kind: "outputOverflowError",
}

// IsOutputOverflow asserts outputOverflowError.
func IsOutputOverflow(err error) bool {
	return microerror.Cause(err) == outputOverflowError
}

// IsRunFailure reports whether err came from running k6 rather than from
// finding it.
func IsRunFailure(err error) bool {
	return IsExecutionFailed(err) || IsTimeout(err) || IsOutputOverflow(err)
}
