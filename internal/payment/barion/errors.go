package barion

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindUnavailable covers transport faults and non-2xx HTTP replies.
	KindUnavailable Kind = "unavailable"
	// KindRejected means the gateway answered with structured error entries.
	KindRejected Kind = "rejected"
	// KindProtocol means the reply did not match the expected schema.
	KindProtocol Kind = "protocol"
)

// GatewayError is the adapter's single error type; callers branch on Kind.
// Message may contain raw gateway text and must never reach customers.
type GatewayError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("barion %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("barion %s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is a transport-level gateway fault,
// which reconciliation treats as status Unknown rather than a failure.
func IsUnavailable(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == KindUnavailable
}
