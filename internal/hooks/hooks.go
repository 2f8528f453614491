// Package hooks installs the engine facade's global fault hooks — the Go
// mapping of the spec's "synchronous throw hook, unhandled asynchronous
// rejection hook, and (on OS-process targets) an uncaught exception hook and
// an unhandled-rejection hook" (spec §4.5) onto idiomatic Go primitives:
// panic/recover for the synchronous case and channel draining for the
// asynchronous case.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/echovox/echovox/pkg/types"
)

// FaultReceiver is satisfied by the engine facade. Hooks never import
// internal/engine directly, avoiding a cycle.
type FaultReceiver interface {
	HandleFault(fault types.Fault)
}

// HookFunc installs one fault source and returns an uninstall function.
// Returning a non-nil error means installation failed; per spec, failure to
// install a hook is non-fatal and is logged by [Installer.InstallAll]
// rather than propagated.
type HookFunc func(ctx context.Context, receiver FaultReceiver) (uninstall func(), err error)

// Go runs fn on a new goroutine, recovering any panic and routing it to
// receiver as a Fault — the Go analogue of a synchronous "throw" hook, since
// Go has no global uncaught-exception handler to install.
func Go(receiver FaultReceiver, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				receiver.HandleFault(types.Fault{
					Message: fmt.Sprintf("panic in %s: %v", name, r),
					Kind:    types.KindError,
					Stack:   string(debug.Stack()),
					Cause:   r,
				})
			}
		}()
		fn()
	}()
}

// Installer tracks installed hooks so they can be uninstalled together.
// Safe for concurrent use.
type Installer struct {
	mu           sync.Mutex
	uninstallers []func()
}

// NewInstaller returns an empty Installer.
func NewInstaller() *Installer {
	return &Installer{}
}

// WatchChannel drains errCh for the lifetime of ctx (or until Uninstall is
// called), routing every non-nil error to receiver as a Fault. This is the
// Go mapping of an "unhandled rejection" hook: a background goroutine
// reports errors that a task's original caller never collected. Registers
// its own cancellation with the Installer.
func (in *Installer) WatchChannel(ctx context.Context, receiver FaultReceiver, name string, errCh <-chan error) {
	watchCtx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-watchCtx.Done():
				return
			case err, ok := <-errCh:
				if !ok {
					return
				}
				if err == nil {
					continue
				}
				receiver.HandleFault(types.Fault{
					Message: err.Error(),
					Kind:    types.KindError,
					Cause:   err,
				})
			}
		}
	}()

	in.mu.Lock()
	in.uninstallers = append(in.uninstallers, cancel)
	in.mu.Unlock()
}

// InstallAll runs every hook concurrently via an errgroup. A hook that fails
// to install is logged at warn level and does not fail the group — per
// spec, hook installation is best-effort. Successfully installed hooks'
// uninstallers are retained for a later call to Uninstall.
func (in *Installer) InstallAll(ctx context.Context, receiver FaultReceiver, hookFns ...HookFunc) error {
	var g errgroup.Group

	for _, h := range hookFns {
		h := h
		g.Go(func() error {
			uninstall, err := h(ctx, receiver)
			if err != nil {
				slog.Warn("hooks: install failed", "err", err)
				return nil
			}
			in.mu.Lock()
			in.uninstallers = append(in.uninstallers, uninstall)
			in.mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// Uninstall reverses every hook installed via InstallAll or WatchChannel.
// Idempotent — a second call is a no-op.
func (in *Installer) Uninstall() {
	in.mu.Lock()
	fns := in.uninstallers
	in.uninstallers = nil
	in.mu.Unlock()

	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}
