package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay coalesces the write of a certificate and its key into
// one reload.
const DefaultReloadDelay = 500 * time.Millisecond

// CertificateReloader serves a key pair from disk and swaps it when the
// files change, so renewed certificates take effect without a restart.
// A pair that fails to load or validate is logged and the previous pair
// keeps serving.
type CertificateReloader struct {
	certFile string
	keyFile  string
	delay    time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewCertificateReloader creates a reloader for the given key pair. Call
// Load before serving.
func NewCertificateReloader(certFile, keyFile string, logger *slog.Logger) *CertificateReloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CertificateReloader{
		certFile: certFile,
		keyFile:  keyFile,
		delay:    DefaultReloadDelay,
		logger:   logger.With("component", "tls"),
		now:      time.Now,
	}
}

// Load reads and validates the key pair. The current certificate is only
// replaced on success.
func (r *CertificateReloader) Load() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load key pair: %w", err)
	}
	if err := ValidateCertificate(&cert, r.now()); err != nil {
		return err
	}

	leaf, _ := Leaf(&cert)
	cert.Leaf = leaf

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	soon, days := ExpiresSoon(leaf, r.now())
	attrs := []any{
		"subject", leaf.Subject.String(),
		"not_after", leaf.NotAfter.Format(time.RFC3339),
		"days_remaining", days,
	}
	if soon {
		r.logger.Warn("serving certificate expires soon", attrs...)
	} else {
		r.logger.Info("serving certificate loaded", attrs...)
	}
	return nil
}

// Certificate returns the pair currently served, or nil before Load.
func (r *CertificateReloader) Certificate() *tls.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert
}

// GetCertificate is a tls.Config.GetCertificate callback.
func (r *CertificateReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	if cert := r.Certificate(); cert != nil {
		return cert, nil
	}
	return nil, fmt.Errorf("no serving certificate loaded")
}

// Watch reloads the pair whenever either file changes, until ctx is done.
func (r *CertificateReloader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()

	// Secret mounts swap files through symlinked directories, so the
	// parent directories are watched instead of the files.
	dirs := map[string]bool{
		filepath.Dir(r.certFile): true,
		filepath.Dir(r.keyFile):  true,
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %q: %w", dir, err)
		}
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if ev.Op == fsnotify.Chmod || !r.relevant(ev.Name) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(r.delay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := r.Load(); err != nil {
				r.logger.Error("certificate reload failed, keeping previous certificate", "error", err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			r.logger.Error("certificate watcher error", "error", err)
		}
	}
}

func (r *CertificateReloader) relevant(name string) bool {
	name = filepath.Clean(name)
	if name == filepath.Clean(r.certFile) || name == filepath.Clean(r.keyFile) {
		return true
	}
	// Kubernetes-style "..data" symlink swaps.
	return filepath.Base(name) == "..data"
}
