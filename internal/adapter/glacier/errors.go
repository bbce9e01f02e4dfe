package glacier

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/cwygoda/thaw/internal/domain"
)

// Error codes the service uses for conditions that clear up on their own.
var transientCodes = map[string]bool{
	"ServiceUnavailableException":   true,
	"ThrottlingException":           true,
	"ThrottledException":            true,
	"RequestLimitExceededException": true,
	"SlowDown":                      true,
}

// ErrChecksumMismatch is returned when downloaded bytes do not hash to the
// tree hash reported by the service.
var ErrChecksumMismatch = errors.New("tree hash mismatch")

// wrap annotates err with op and marks throttling and unavailability as
// domain.TransientError.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && transientCodes[apiErr.ErrorCode()] {
		return &domain.TransientError{Code: apiErr.ErrorCode(), Err: fmt.Errorf("glacier.%s: %w", op, err)}
	}
	return fmt.Errorf("glacier.%s: %w", op, err)
}
