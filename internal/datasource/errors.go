package datasource

import (
	"errors"
	"fmt"
)

// NodeError is a datasource-domain failure: missing files, bad source state,
// anything the node itself can diagnose.
type NodeError struct {
	Message string
}

func (e *NodeError) Error() string {
	return e.Message
}

func NewNodeError(format string, args ...any) *NodeError {
	return &NodeError{Message: fmt.Sprintf(format, args...)}
}

// PluginClientError is a client-side failure reported by the plugin runtime.
type PluginClientError struct {
	Message string
}

func (e *PluginClientError) Error() string {
	return e.Message
}

func NewPluginClientError(format string, args ...any) *PluginClientError {
	return &PluginClientError{Message: fmt.Sprintf(format, args...)}
}

// errorType names the failure class carried on a failed completion event.
func errorType(err error) string {
	var pce *PluginClientError
	if errors.As(err, &pce) {
		return "PluginClientError"
	}
	var ne *NodeError
	if errors.As(err, &ne) {
		return "DatasourceNodeError"
	}
	return "Error"
}
