// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobtemplate

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
	"github.com/aws/smithy-go"
)

// IsNotFound reports whether err is a MediaConvert NotFoundException.
func IsNotFound(err error) bool {
	var notFound *types.NotFoundException
	return errors.As(err, &notFound) || hasErrorCode(err, "NotFoundException")
}

// IsThrottled reports whether err is a MediaConvert
// TooManyRequestsException.
func IsThrottled(err error) bool {
	var throttled *types.TooManyRequestsException
	return errors.As(err, &throttled) || hasErrorCode(err, "TooManyRequestsException")
}

// IsConflict reports whether err is a MediaConvert ConflictException.
// CreateJobTemplate returns it when a template with the same name
// already exists.
func IsConflict(err error) bool {
	var conflict *types.ConflictException
	return errors.As(err, &conflict) || hasErrorCode(err, "ConflictException")
}

// hasErrorCode matches API errors the SDK could not map to a modeled
// exception type.
func hasErrorCode(err error, code string) bool {
	var apiError smithy.APIError
	return errors.As(err, &apiError) && apiError.ErrorCode() == code
}
