package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/evidence"
)

// Config configures a Recorder.
type Config struct {
	// Enabled turns recording on. A disabled recorder accepts and discards
	// every entry.
	Enabled bool

	// AsyncBuffer is the queue size.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds a single storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// FromConfig builds a recorder configuration from the evidence section.
func FromConfig(cfg *config.EvidenceConfig) *Config {
	c := DefaultConfig()
	c.Enabled = cfg.Enabled
	if cfg.Recorder.AsyncBuffer > 0 {
		c.AsyncBuffer = cfg.Recorder.AsyncBuffer
	}
	if cfg.Recorder.WriteTimeout > 0 {
		c.WriteTimeout = cfg.Recorder.WriteTimeout
	}
	return c
}

// Entry is everything the recorder needs to know about one evaluation.
type Entry struct {
	RequestID string
	Direction arbiter.Direction
	Scope     arbiter.Scope
	Provider  string
	Model     string

	// Credential is the caller's API key. Only its fingerprint is kept.
	Credential string

	// Text is the evaluated input. Only its hash and length are kept.
	Text string

	Result  *arbiter.EvaluationResult
	Latency time.Duration
}

// Recorder writes evidence records asynchronously.
type Recorder struct {
	storage evidence.Storage
	config  *Config
	logger  *slog.Logger

	records chan *evidence.Record
	done    chan struct{}
	wg      sync.WaitGroup

	closed    atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64
	written   atomic.Uint64
}

// NewRecorder starts a recorder writing to storage.
func NewRecorder(storage evidence.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "evidence.recorder"),
		records: make(chan *evidence.Record, config.AsyncBuffer),
		done:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("evidence recorder initialized",
		"enabled", config.Enabled,
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// Record queues an entry for writing. It never waits: when the queue is
// full the entry is dropped and counted. The entry is queued even if the
// caller's context is already done, so a disconnected client still leaves
// evidence.
func (r *Recorder) Record(_ context.Context, e Entry) error {
	if !r.config.Enabled || e.Result == nil {
		return nil
	}
	if r.closed.Load() {
		return evidence.NewRecorderError("", evidence.ErrRecorderClosed)
	}
	rec := NewRecord(e)

	select {
	case r.records <- rec:
		return nil
	default:
		r.dropped.Add(1)
		r.logger.Error("evidence queue full, dropping record",
			"record_id", rec.ID,
			"request_id", rec.RequestID,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return evidence.NewRecorderError(rec.ID, evidence.ErrQueueFull)
	}
}

// Dropped returns how many entries were discarded.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Written returns how many records reached storage.
func (r *Recorder) Written() uint64 { return r.written.Load() }

// Close stops accepting entries and waits for the queue to drain.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()
		r.logger.Info("evidence recorder shut down",
			"written", r.written.Load(),
			"dropped", r.dropped.Load(),
		)
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for {
		select {
		case rec := <-r.records:
			r.write(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.records:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec *evidence.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, rec); err != nil {
		r.logger.Error("failed to store evidence record",
			"record_id", rec.ID,
			"request_id", rec.RequestID,
			"error", err,
		)
		return
	}
	r.written.Add(1)

	if d := time.Since(start); d > r.config.WriteTimeout/2 {
		r.logger.Warn("slow evidence write",
			"record_id", rec.ID,
			"duration_ms", d.Milliseconds(),
		)
	}
}

// NewRecord builds the evidence record for an entry. The result must not
// be nil.
func NewRecord(e Entry) *evidence.Record {
	res := e.Result
	agent := e.Scope.AgentID
	if agent == "" {
		agent = arbiter.DefaultAgentID
	}

	ev := make([]arbiter.Evidence, len(res.Metadata.Evidence))
	copy(ev, res.Metadata.Evidence)

	return &evidence.Record{
		ID:            uuid.New().String(),
		RequestID:     e.RequestID,
		RecordedTime:  time.Now().UTC(),
		Direction:     string(e.Direction),
		AgentID:       agent,
		Route:         e.Scope.Route,
		Provider:      e.Provider,
		Model:         e.Model,
		CallerKey:     HashCredential(e.Credential),
		Verdict:       string(res.Verdict()),
		Blocked:       res.IsBlocked,
		Reason:        res.Metadata.Reason,
		Policy:        res.Metadata.Policy,
		Redactions:    res.Metadata.Redactions,
		Health:        string(res.Metadata.Health),
		DriftDetected: res.Metadata.Drift.Detected,
		Entropy:       res.Metadata.Drift.Entropy,
		PValue:        res.Metadata.Drift.PValue,
		Evidence:      ev,
		TextHash:      HashText(e.Text),
		TextLength:    utf8.RuneCountInString(e.Text),
		Latency:       e.Latency,
	}
}
