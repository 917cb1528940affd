package services

import "context"

type contextKey string

const (
	runIDKey      contextKey = "run_id"
	modeKey       contextKey = "mode"
	remotePathKey contextKey = "remote_path"
)

// WithRunID annotates context with the invocation's run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithMode annotates context with the run mode (sync, prune, bootstrap).
func WithMode(ctx context.Context, mode string) context.Context {
	if mode == "" {
		return ctx
	}
	return context.WithValue(ctx, modeKey, mode)
}

// ModeFromContext returns the run mode if present.
func ModeFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(modeKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRemotePath annotates context with the remote file currently being handled.
func WithRemotePath(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, remotePathKey, path)
}

// RemotePathFromContext returns the remote path if present.
func RemotePathFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(remotePathKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
