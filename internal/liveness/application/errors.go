package application

import (
	"context"
	"errors"
	"fmt"
)

// ErrStoreTimeout marks a store operation that exceeded its deadline.
// Callers treat it as transient; the next beat or sweep tick retries.
var ErrStoreTimeout = errors.New("store timeout")

func classifyStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStoreTimeout, err)
	}
	return err
}
