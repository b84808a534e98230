package backend

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aws/smithy-go"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shashiranjanraj/storefront/pkg/storage"
)

// Kind classifies a backend failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermission
	KindUnavailable
	KindTimeout
	KindInternal
	KindInvalidConfig
	KindOrderingUnsupported
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindInternal:
		return "internal"
	case KindInvalidConfig:
		return "invalid_config"
	case KindOrderingUnsupported:
		return "ordering_unsupported"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	ErrNotInitialized = errors.New("backend: connection not initialized")

	// ErrConnection marks a rejected configuration. It is not retried.
	ErrConnection = errors.New("backend: connection rejected")

	ErrNotFound   = errors.New("backend: not found")
	ErrPermission = errors.New("backend: permission denied")

	// ErrTransient matches every error worth retrying: unavailable, timeout
	// and internal failures.
	ErrTransient = errors.New("backend: temporarily unavailable")

	ErrOrderingUnsupported = errors.New("backend: ordering not supported")
)

// Error is a classified backend failure.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on the sentinel errors above.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrPermission:
		return e.Kind == KindPermission
	case ErrConnection:
		return e.Kind == KindInvalidConfig
	case ErrTransient:
		return e.Kind.Transient()
	case ErrOrderingUnsupported:
		return e.Kind == KindOrderingUnsupported
	}
	return false
}

// Transient reports whether failures of this kind may succeed on retry.
func (k Kind) Transient() bool {
	return k == KindUnavailable || k == KindTimeout || k == KindInternal
}

// E wraps err as an *Error for op, classifying it. A nil err returns nil.
func E(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: Classify(err), Err: err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return err != nil && Classify(err).Transient()
}

// Mongo server error codes the storefront cares about. Permission covers
// Unauthorized, AuthenticationFailed and AtlasError; ordering covers
// OperationFailed and QueryExceededMemoryLimitNoDiskUseAllowed (an unindexed
// sort); bad config covers BadValue, FailedToParse and InvalidNamespace.
var (
	permissionCodes  = []int{13, 18, 8000}
	unavailableCodes = []int{6, 7, 89, 91, 189, 262, 9001, 10107, 11600, 11602, 13435, 13436}
	orderingCodes    = []int{96, 292}
	badConfigCodes   = []int{2, 9, 73}
)

// Classify maps an error from the mongo driver, the blob store, the network
// stack or a context onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}

	switch {
	case errors.Is(err, ErrNotInitialized):
		return KindUnavailable
	case errors.Is(err, ErrOrderingUnsupported):
		return KindOrderingUnsupported
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, storage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, mongo.ErrClientDisconnected):
		return KindUnavailable
	case mongo.IsTimeout(err):
		return KindTimeout
	case mongo.IsNetworkError(err):
		return KindUnavailable
	}

	var se mongo.ServerError
	if errors.As(err, &se) {
		switch {
		case hasAnyCode(se, permissionCodes):
			return KindPermission
		case hasAnyCode(se, orderingCodes):
			return KindOrderingUnsupported
		case hasAnyCode(se, badConfigCodes):
			return KindInvalidConfig
		case hasAnyCode(se, unavailableCodes),
			se.HasErrorLabel("RetryableWriteError"),
			se.HasErrorLabel("TransientTransactionError"):
			return KindUnavailable
		}
		return KindInternal
	}

	var api smithy.APIError
	if errors.As(err, &api) {
		switch api.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return KindNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden":
			return KindPermission
		case "SlowDown", "ServiceUnavailable", "RequestTimeout", "Throttling":
			return KindUnavailable
		case "InternalError":
			return KindInternal
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindUnavailable
	}

	return KindUnknown
}

func hasAnyCode(se mongo.ServerError, codes []int) bool {
	for _, c := range codes {
		if se.HasErrorCode(c) {
			return true
		}
	}
	return false
}
