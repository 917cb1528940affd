package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConnection    = errors.New("connection failure")
	ErrDependency    = errors.New("dependency unavailable")
	ErrConfiguration = errors.New("configuration error")
	ErrLedger        = errors.New("ledger failure")
	ErrTransfer      = errors.New("transfer failure")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to the short classification recorded in run history
// and notifications.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrDependency):
		return "dependency"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrLedger):
		return "ledger"
	case errors.Is(err, ErrTransfer):
		return "transfer"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "failed"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
