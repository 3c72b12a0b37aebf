// internal/host/host.go
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/config"
	"github.com/xkilldash9x/agentxen/internal/nativemsg"
)

// Messages sent to the extension outside of command results. The extension
// shows them verbatim.
const (
	MsgInitialized      = "Agent initialized successfully"
	MsgInitFailed       = "Failed to initialize agent"
	MsgNotInitialized   = "Agent not initialized"
	MsgProcessingPrefix = "Processing: "
	MsgUnknownError     = "Unknown error"
)

const cleanupTimeout = 15 * time.Second

// Controller is the session the host drives. agent.Controller implements it.
type Controller interface {
	Initialize(ctx context.Context) bool
	Ready() bool
	ProcessCommand(ctx context.Context, text string) schemas.CommandResult
	Cleanup(ctx context.Context)
}

// State is the lifecycle phase of the host.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateProcessing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Host runs the native messaging loop: one frame in, one command fully
// resolved, then the next frame.
type Host struct {
	controller Controller
	decoder    *nativemsg.Decoder
	encoder    *nativemsg.Encoder
	logger     *zap.Logger
	state      atomic.Int32
	cleaned    atomic.Bool
}

// New creates a Host reading frames from in and writing them to out.
func New(controller Controller, in io.Reader, out io.Writer, cfg config.HostConfig, logger *zap.Logger) *Host {
	return &Host{
		controller: controller,
		decoder:    nativemsg.NewDecoder(in, cfg.MaxInboundBytes),
		encoder:    nativemsg.NewEncoder(out, cfg.MaxOutboundBytes),
		logger:     logger.Named("host"),
	}
}

// State returns the current lifecycle phase.
func (h *Host) State() State { return State(h.state.Load()) }

func (h *Host) setState(s State) {
	old := State(h.state.Swap(int32(s)))
	if old != s {
		h.logger.Debug("State changed", zap.Stringer("from", old), zap.Stringer("to", s))
	}
}

type frame struct {
	msg *nativemsg.Message
	err error
}

// Run initializes the controller and processes commands until the stream
// ends, a fatal stream error occurs, or ctx is cancelled. The controller is
// cleaned up exactly once before Run returns. A clean end of stream returns
// nil; cancellation returns ctx.Err().
func (h *Host) Run(ctx context.Context) error {
	defer h.cleanup(ctx)

	h.logger.Info("Native messaging host started")
	if err := h.initialize(ctx, false); err != nil {
		return err
	}

	requests := make(chan struct{})
	frames := make(chan frame, 1)
	defer close(requests)
	go h.readPump(requests, frames)

	for {
		// Ask for exactly one frame; the previous command has fully resolved.
		requests <- struct{}{}

		var f frame
		select {
		case <-ctx.Done():
			h.logger.Info("Shutdown requested, stopping message loop", zap.Error(ctx.Err()))
			return ctx.Err()
		case f = <-frames:
		}

		if f.err != nil {
			switch {
			case errors.Is(f.err, nativemsg.ErrEndOfStream):
				h.logger.Info("Input stream closed, exiting")
				return nil
			case errors.Is(f.err, nativemsg.ErrDecode):
				h.logger.Warn("Discarding malformed message", zap.Error(f.err))
				continue
			default:
				h.logger.Error("Fatal stream error", zap.Error(f.err))
				return fmt.Errorf("native messaging stream failed: %w", f.err)
			}
		}

		if err := h.dispatch(ctx, f.msg); err != nil {
			return err
		}
	}
}

// readPump reads one frame per request. It exits after a fatal read or when
// requests is closed while it is idle. A read already in progress when Run
// returns blocks until the stream yields, which is why Run does not wait for
// the pump.
func (h *Host) readPump(requests <-chan struct{}, frames chan<- frame) {
	for range requests {
		msg, err := h.decoder.Decode()
		frames <- frame{msg: msg, err: err}
		if err != nil && !errors.Is(err, nativemsg.ErrDecode) {
			return
		}
	}
}

// dispatch handles one decoded message. It returns an error only when the
// output stream is unusable.
func (h *Host) dispatch(ctx context.Context, msg *nativemsg.Message) error {
	if msg.Type != nativemsg.MsgTypeCommand {
		h.logger.Debug("Ignoring non-command message", zap.String("type", string(msg.Type)))
		return nil
	}

	if !h.controller.Ready() {
		if err := h.initialize(ctx, true); err != nil {
			return err
		}
		if !h.controller.Ready() {
			return nil
		}
	}

	text := msg.CommandText()
	fields := []zap.Field{zap.String("command", text)}
	if tabID, tabURL := msg.TabContext(); tabID != nil {
		fields = append(fields, zap.Int("tab_id", *tabID), zap.String("tab_url", tabURL))
	}
	h.logger.Info("Command received", fields...)

	h.setState(StateProcessing)
	defer h.setState(StateReady)

	if err := h.send(nativemsg.NewStatus(MsgProcessingPrefix + text)); err != nil {
		return err
	}
	return h.send(h.process(ctx, text))
}

// process runs the command and builds the single terminal message for it.
func (h *Host) process(ctx context.Context, text string) (reply *nativemsg.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic escaped the controller", zap.Any("panic", r), zap.Stack("stack"))
			reply = nativemsg.NewError(fmt.Sprint(r))
		}
	}()

	result := h.controller.ProcessCommand(ctx, text)
	if result.Succeeded() {
		return nativemsg.NewResult(true, fmt.Sprintf("Executed %d actions", len(result.Results)), &result)
	}
	errMsg := result.Error
	if errMsg == "" {
		errMsg = MsgUnknownError
	}
	return nativemsg.NewResult(false, errMsg, nil)
}

// initialize brings the controller up and reports the outcome to the
// extension. A lazy attempt that fails is reported as "not initialized".
func (h *Host) initialize(ctx context.Context, lazy bool) error {
	h.setState(StateInitializing)
	if h.controller.Initialize(ctx) {
		h.setState(StateReady)
		return h.send(nativemsg.NewStatus(MsgInitialized))
	}

	h.setState(StateUninitialized)
	if lazy {
		h.logger.Warn("Lazy initialization failed, command dropped")
		return h.send(nativemsg.NewError(MsgNotInitialized))
	}
	h.logger.Error("Initialization failed, will retry on the next command")
	return h.send(nativemsg.NewError(MsgInitFailed))
}

// send writes one message. A reply over the outbound limit is replaced by an
// error message so the command still gets exactly one terminal message.
// Any other write failure is fatal for the loop.
func (h *Host) send(msg *nativemsg.Message) error {
	err := h.encoder.Encode(msg)
	if err == nil {
		return nil
	}
	if errors.Is(err, nativemsg.ErrMessageTooLarge) {
		h.logger.Warn("Outbound message exceeds size limit", zap.String("type", string(msg.Type)), zap.Error(err))
		err = h.encoder.Encode(nativemsg.NewError(fmt.Sprintf("Result too large to deliver to the extension: %v", err)))
		if err == nil {
			return nil
		}
	}
	h.logger.Error("Failed to write to the extension", zap.Error(err))
	return fmt.Errorf("failed to send %s message: %w", msg.Type, err)
}

// cleanup releases the controller once, even when ctx is already cancelled.
func (h *Host) cleanup(ctx context.Context) {
	if !h.cleaned.CompareAndSwap(false, true) {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	h.controller.Cleanup(cleanupCtx)
	h.setState(StateClosed)
	h.logger.Info("Native messaging host stopped")
}
