package errors

import "fmt"

// ConfigError signals an inconsistency in server configuration, such as
// duplicate resource names or overlapping identity/API scope namespaces.
// It is returned from store and service constructors and is fatal: callers
// abort startup instead of retrying per request.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Detail)
}

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Detail: fmt.Sprintf(format, args...)}
}
