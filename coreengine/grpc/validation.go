package grpc

import (
	"errors"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/msyber/agora/coreengine/artifact"
)

// =============================================================================
// REQUEST FIELDS
// =============================================================================

// stringField returns a string field of req, or "" when absent.
func stringField(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// requiredString returns a non-empty string field or InvalidArgument.
func requiredString(req *structpb.Struct, name string) (string, error) {
	s := stringField(req, name)
	if s == "" {
		return "", InvalidArgument(name)
	}
	return s, nil
}

// optionalVersion reads the "version" field. Absent means the latest version.
func optionalVersion(req *structpb.Struct) (int, error) {
	v, ok := req.GetFields()["version"]
	if !ok {
		return artifact.Latest, nil
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber || n.NumberValue < 0 || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, status.Error(codes.InvalidArgument, "version must be a non-negative integer")
	}
	return int(n.NumberValue), nil
}

// =============================================================================
// ERROR CODES
// =============================================================================

// InvalidArgument returns a gRPC InvalidArgument error for a missing field.
func InvalidArgument(fieldName string) error {
	return status.Errorf(codes.InvalidArgument, "%s is required", fieldName)
}

// NotFound returns a gRPC NotFound error.
func NotFound(resourceType, id string) error {
	return status.Errorf(codes.NotFound, "%s not found: %s", resourceType, id)
}

// Internal wraps an unexpected failure.
func Internal(operation string, cause error) error {
	return status.Errorf(codes.Internal, "%s failed: %v", operation, cause)
}

// artifactError maps store errors onto status codes.
func artifactError(name string, err error) error {
	if errors.Is(err, artifact.ErrNotFound) {
		return NotFound("artifact", name)
	}
	return Internal("load artifact", err)
}
