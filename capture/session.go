package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gogpu/camquad"
)

// DefaultMaxConsecutiveErrors ends a session after this many read failures
// in a row.
const DefaultMaxConsecutiveErrors = 30

// Config configures a Session.
type Config struct {
	// ID identifies the session in logs. A random UUID is used if empty.
	ID string

	// Handler is called for every delivered frame.
	Handler Handler

	// DiscardLateFrames drops a pending frame when a newer one arrives
	// before the handler picked it up. Without it the reader blocks until
	// the handler is ready.
	DiscardLateFrames bool

	// MaxConsecutiveErrors defaults to DefaultMaxConsecutiveErrors if <= 0.
	MaxConsecutiveErrors int
}

// Stats contains session counters.
type Stats struct {
	Read      uint64 `json:"read"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Errors    uint64 `json:"errors"`
}

// Session connects a Camera to a Handler.
type Session struct {
	id        string
	camera    Camera
	handler   Handler
	discard   bool
	maxErrors int

	frames chan *camquad.PixelBuffer

	started atomic.Bool
	done    chan struct{}
	err     error

	read      atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	readErrs  atomic.Uint64
}

// NewSession creates a session. The session owns camera and closes it when
// reading stops.
func NewSession(camera Camera, cfg Config) (*Session, error) {
	if camera == nil {
		return nil, ErrNoCamera
	}
	if cfg.Handler == nil {
		return nil, ErrNoHandler
	}
	id := cfg.ID
	if id == "" {
		id = uuid.New().String()
	}
	maxErrors := cfg.MaxConsecutiveErrors
	if maxErrors <= 0 {
		maxErrors = DefaultMaxConsecutiveErrors
	}
	return &Session{
		id:        id,
		camera:    camera,
		handler:   cfg.Handler,
		discard:   cfg.DiscardLateFrames,
		maxErrors: maxErrors,
		frames:    make(chan *camquad.PixelBuffer, 1),
		done:      make(chan struct{}),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Start begins reading and delivering frames until ctx is done, the camera
// reports io.EOF, or reads keep failing.
func (s *Session) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	log := camquad.Logger().With("session", s.id)
	log.Info("capture: session started", "discard_late_frames", s.discard)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.err = s.readLoop(ctx, log)
	}()
	go func() {
		defer wg.Done()
		s.deliverLoop(ctx)
	}()
	go func() {
		wg.Wait()
		st := s.Stats()
		log.Info("capture: session stopped",
			"read", st.Read, "delivered", st.Delivered,
			"dropped", st.Dropped, "errors", st.Errors, "err", s.err)
		close(s.done)
	}()
	return nil
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session stops and returns the reason it stopped
// early, or nil after cancellation or end of stream.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Read:      s.read.Load(),
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Errors:    s.readErrs.Load(),
	}
}

func (s *Session) readLoop(ctx context.Context, log *slog.Logger) error {
	defer close(s.frames)
	defer func() {
		if err := s.camera.Close(); err != nil {
			log.Warn("capture: camera close failed", "err", err)
		}
	}()

	consecutive := 0
	for {
		pb, err := s.camera.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			s.readErrs.Add(1)
			consecutive++
			log.Warn("capture: frame read failed", "err", err, "consecutive", consecutive)
			if errors.Is(err, ErrCameraClosed) {
				return err
			}
			if consecutive >= s.maxErrors {
				return errors.Join(ErrTooManyErrors, err)
			}
			continue
		}
		consecutive = 0
		s.read.Add(1)

		if !s.discard {
			select {
			case s.frames <- pb:
			case <-ctx.Done():
				return nil
			}
			continue
		}

		select {
		case s.frames <- pb:
		default:
			// The pending frame is late: replace it.
			select {
			case <-s.frames:
				s.dropped.Add(1)
				log.Debug("capture: late frame discarded")
			default:
			}
			s.frames <- pb
		}
	}
}

func (s *Session) deliverLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pb, ok := <-s.frames:
			if !ok {
				return
			}
			s.handler(pb)
			s.delivered.Add(1)
		}
	}
}
