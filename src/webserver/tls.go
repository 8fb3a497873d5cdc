package webserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// TLSReloader serves the current certificate and reloads it when the cert or
// key file changes on disk.
type TLSReloader struct {
	certFile string
	keyFile  string
	log      *zap.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
}

func NewTLSReloader(certFile, keyFile string, log *zap.Logger) (*TLSReloader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &TLSReloader{certFile: certFile, keyFile: keyFile, log: log.Named("tls")}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *TLSReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()
	return nil
}

// Watch reloads on file events until ctx is done. Directories are watched
// so renames by cert managers are seen.
func (r *TLSReloader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := map[string]bool{filepath.Dir(r.certFile): true, filepath.Dir(r.keyFile): true}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	cert, key := filepath.Clean(r.certFile), filepath.Clean(r.keyFile)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(ev.Name)
			if name != cert && name != key {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := r.reload(); err != nil {
				// The pair is often written in two steps; keep the old one.
				r.log.Debug("reload skipped", zap.String("file", name), zap.Error(err))
				continue
			}
			r.log.Info("certificates reloaded", zap.String("file", name))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (r *TLSReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

func (r *TLSReloader) Config() *tls.Config {
	return &tls.Config{
		GetCertificate: r.GetCertificate,
		MinVersion:     tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	}
}
