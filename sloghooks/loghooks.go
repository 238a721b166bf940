// Package sloghooks logs registry and codec events to a *slog.Logger.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/remoteval"
	"github.com/unkn0wn-root/remoteval/internal/util"
	"github.com/unkn0wn-root/remoteval/remote"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	UnknownHandleEvery  uint64
	DepthTruncatedEvery uint64
	// LogMints logs every mint and release at Debug.
	LogMints bool
	// Optional handle redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	unknownCtr   atomic.Uint64
	truncatedCtr atomic.Uint64
}

var _ remoteval.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(handle string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(handle)
	}
	return util.ShortHash(handle)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) HandleMinted(realm, handle string) {
	if h.l == nil || !h.opts.LogMints {
		return
	}
	h.l.Debug("remoteval.handle_minted",
		"realm", realm,
		"handle", h.redact(handle))
}

func (h *Hooks) HandleReleased(realm, handle, reason string) {
	if h.l == nil {
		return
	}
	// Explicit disowns are routine; everything else means a client may
	// still hold the handle.
	if reason == "disown" && !h.opts.LogMints {
		return
	}
	h.l.Info("remoteval.handle_released",
		"realm", realm,
		"handle", h.redact(handle),
		"reason", reason)
}

func (h *Hooks) UnknownHandle(realm, handle string) {
	if h.l == nil || !sample(h.opts.UnknownHandleEvery, &h.unknownCtr) {
		return
	}
	h.l.Info("remoteval.unknown_handle",
		"realm", realm,
		"handle", h.redact(handle))
}

func (h *Hooks) LeaseRejected(realm, handle string) {
	if h.l == nil {
		return
	}
	h.l.Warn("remoteval.lease_rejected",
		"realm", realm,
		"handle", h.redact(handle))
}

func (h *Hooks) LeaseError(realm, op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("remoteval.lease_error",
		"realm", realm,
		"op", op,
		"err", err)
}

func (h *Hooks) DepthTruncated(realm string, t remote.Type) {
	if h.l == nil || !sample(h.opts.DepthTruncatedEvery, &h.truncatedCtr) {
		return
	}
	h.l.Debug("remoteval.depth_truncated",
		"realm", realm,
		"type", string(t))
}
