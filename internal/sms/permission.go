package sms

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned by Poller.Start when the permission
// provider refuses access to the SMS source.
var ErrPermissionDenied = errors.New("sms read permission not granted")

// PermissionProvider gates access to the SMS source.
type PermissionProvider interface {
	EnsureGranted(ctx context.Context) (bool, error)
}

// StaticPermission answers with a fixed decision. Server deployments have no
// permission dialog, so main wires StaticPermission(true).
type StaticPermission bool

func (p StaticPermission) EnsureGranted(context.Context) (bool, error) {
	return bool(p), nil
}
