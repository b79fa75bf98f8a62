package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"dupefinder/internal/logger"
)

// Handler cancels in-flight scans and detection jobs on SIGINT/SIGTERM and
// runs registered cleanups exactly once.
type Handler struct {
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	done       chan struct{}
	cleanupFns []func()
	mu         sync.Mutex
	logger     *logger.Logger
}

// New creates a new shutdown handler
func New(log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: log,
	}
}

// Context returns the shutdown context
func (h *Handler) Context() context.Context {
	return h.ctx
}

// AddCleanup registers a cleanup function. Cleanups run in reverse order of
// registration, like deferred calls.
func (h *Handler) AddCleanup(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanupFns = append(h.cleanupFns, fn)
}

// Listen starts listening for shutdown signals. A second signal exits
// immediately with status 130.
func (h *Handler) Listen() {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		h.logger.Warn("Received %s, stopping (press Ctrl+C again to force)", sig)
		go h.Shutdown()

		<-sigChan
		h.logger.Error("Forced exit")
		os.Exit(130)
	}()
}

// Shutdown cancels the context and runs the cleanups. Later calls are no-ops.
func (h *Handler) Shutdown() {
	h.once.Do(func() {
		h.cancel()

		h.mu.Lock()
		fns := h.cleanupFns
		h.cleanupFns = nil
		h.mu.Unlock()

		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
		close(h.done)
	})
}

// Done is closed once Shutdown has run every cleanup.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
