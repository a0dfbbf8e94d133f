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

// DefaultReloadDebounce is the quiet period after the last file event
// before the pair is reloaded.
const DefaultReloadDebounce = 200 * time.Millisecond

// CertificateReloader serves a certificate pair that is replaced when the
// files on disk change, so renewed certificates take effect without a
// restart. A pair that fails to load or validate is logged and the
// previous certificate keeps serving.
type CertificateReloader struct {
	certFile string
	keyFile  string
	debounce time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewCertificateReloader loads the initial pair. It fails if the pair cannot
// be loaded or is not currently valid.
func NewCertificateReloader(certFile, keyFile string, logger *slog.Logger) (*CertificateReloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &CertificateReloader{
		certFile: filepath.Clean(certFile),
		keyFile:  filepath.Clean(keyFile),
		debounce: DefaultReloadDebounce,
		logger:   logger.With("component", "security.tls"),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetDebounce changes the quiet period. It must be called before Start.
func (r *CertificateReloader) SetDebounce(d time.Duration) {
	if d > 0 {
		r.debounce = d
	}
}

// Start watches the directories holding the pair and reloads after changes
// until ctx is cancelled. Directories rather than files are watched so that
// replacement by rename is seen.
func (r *CertificateReloader) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create certificate watcher: %w", err)
	}
	for _, dir := range r.dirs() {
		if err := w.Add(dir); err != nil {
			w.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	r.logger.Info("watching certificate files",
		"cert_file", r.certFile,
		"key_file", r.keyFile,
	)
	go r.loop(ctx, w)
	return nil
}

func (r *CertificateReloader) dirs() []string {
	certDir, keyDir := filepath.Dir(r.certFile), filepath.Dir(r.keyFile)
	if certDir == keyDir {
		return []string{certDir}
	}
	return []string{certDir, keyDir}
}

func (r *CertificateReloader) loop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !r.relevant(ev) {
				continue
			}
			r.logger.Debug("certificate file event", "path", ev.Name, "op", ev.Op.String())
			pending = time.After(r.debounce)

		case <-pending:
			pending = nil
			if err := r.Reload(); err != nil {
				r.logger.Error("certificate reload failed, keeping previous certificate",
					"error", err,
					"cert_file", r.certFile,
				)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			r.logger.Error("certificate watcher error", "error", err)
		}
	}
}

// relevant reports whether ev touches the pair. Kubernetes secret volumes
// update by swapping a ..data symlink, which is treated as a change too.
func (r *CertificateReloader) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	return name == r.certFile || name == r.keyFile || filepath.Base(name) == "..data"
}

// Reload loads and validates the pair from disk and swaps it in.
func (r *CertificateReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	leaf, err := leafOf(&cert)
	if err != nil {
		return err
	}
	if err := ValidateX509Certificate(leaf, time.Now()); err != nil {
		return fmt.Errorf("certificate validation failed: %w", err)
	}
	cert.Leaf = leaf

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	r.logger.Info("certificate loaded",
		"subject", leaf.Subject.CommonName,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
	)
	return nil
}

// Certificate returns the pair currently served.
func (r *CertificateReloader) Certificate() *tls.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert
}

// GetCertificate has the signature of tls.Config.GetCertificate.
func (r *CertificateReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return r.Certificate(), nil
}

// Apply makes cfg serve the reloaded pair instead of its static one.
func (r *CertificateReloader) Apply(cfg *tls.Config) {
	cfg.Certificates = nil
	cfg.GetCertificate = r.GetCertificate
}
