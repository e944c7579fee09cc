package awshelper

import (
	"strings"

	"github.com/aws/smithy-go"

	"github.com/gruntwork-io/lz-teardown/internal/errors"
)

// ErrorCode returns the service error code carried by err, or an empty string.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}

	return ""
}

// IsErrorCode returns true if err is a service error with one of the given codes.
func IsErrorCode(err error, codes ...string) bool {
	code := ErrorCode(err)
	if code == "" {
		return false
	}

	for _, c := range codes {
		if code == c {
			return true
		}
	}

	return false
}

// IsStackNotFound returns true for the validation error CloudFormation answers about a missing stack.
func IsStackNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

func IsBucketNotFound(err error) bool {
	return IsErrorCode(err, "NoSuchBucket", "NotFound")
}

// IsResourceNotFound covers CloudWatch Logs, Backup and DynamoDB.
func IsResourceNotFound(err error) bool {
	return IsErrorCode(err, "ResourceNotFoundException")
}

func IsKMSNotFound(err error) bool {
	return IsErrorCode(err, "NotFoundException")
}

func IsKMSInvalidState(err error) bool {
	return IsErrorCode(err, "KMSInvalidStateException")
}

func IsIAMNoSuchEntity(err error) bool {
	return IsErrorCode(err, "NoSuchEntity")
}

func IsPipelineNotFound(err error) bool {
	return IsErrorCode(err, "PipelineNotFoundException")
}

func IsRepositoryNotFound(err error) bool {
	return IsErrorCode(err, "RepositoryDoesNotExistException")
}

func IsFileNotFound(err error) bool {
	return IsErrorCode(err, "FileDoesNotExistException", "NoSuchKey")
}

func IsAccessDenied(err error) bool {
	return IsErrorCode(err, "AccessDenied", "AccessDeniedException")
}
