package service

import (
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
)

// storeFailure reports a data store or dependency failure. Timeouts land here too; nothing is
// retried server-side.
func storeFailure(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, message)
}

func validationFailure(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
