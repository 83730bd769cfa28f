package loadtest

import "github.com/giantswarm/microerror"

var validationError = &microerror.Error{
	Kind: "validationError",
}

// IsValidation asserts validationError.
func IsValidation(err error) bool {
	return microerror.Cause(err) == validationError
}

var unsupportedFormatError = &microerror.Error{
	Kind: "unsupportedFormatError",
}

// IsUnsupportedFormat asserts unsupportedFormatError.
func IsUnsupportedFormat(err error) bool {
	return microerror.Cause(err) == unsupportedFormatError
}
