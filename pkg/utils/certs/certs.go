package certs

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/fieldapp-client/log"
)

var ErrNoCertsInCA = errors.New("no certificates found in CA file")

// Files names the PEM files used for the connection to the backend.
// CertFile and KeyFile are either both set or both empty.
type Files struct {
	CAFile   string
	CertFile string
	KeyFile  string
}

func (f Files) empty() bool {
	return f.CAFile == "" && f.CertFile == "" && f.KeyFile == ""
}

type clientCerts struct {
	files Files
	log   *log.Logger
	mu    sync.RWMutex
	cert  *tls.Certificate
}

// NewClientTLSConfig returns the TLS config for backend connections.
// It returns nil if no file is configured. A client certificate is reloaded
// whenever its files change until ctx is done.
func NewClientTLSConfig(ctx context.Context, files Files) (*tls.Config, error) {
	if files.empty() {
		return nil, nil
	}
	c := &clientCerts{
		files: files,
		log:   log.Default().Named("certs"),
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if files.CAFile != "" {
		c.log.Info("Loading ca cert", log.String("file", files.CAFile))
		pool, err := loadCAPool(files.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	if files.CertFile != "" {
		if err := c.loadCert(); err != nil {
			return nil, err
		}
		cfg.GetClientCertificate = c.clientCertificate
		w, err := c.newWatcher()
		if err != nil {
			return nil, err
		}
		go c.watch(ctx, w)
	}
	return cfg, nil
}

func loadCAPool(file string) (*x509.CertPool, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%w: %s", ErrNoCertsInCA, file)
	}
	return pool, nil
}

func (c *clientCerts) clientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cert, nil
}

func (c *clientCerts) loadCert() error {
	c.log.Info("Loading cert",
		log.String("cert", c.files.CertFile),
		log.String("key", c.files.KeyFile))
	cert, err := tls.LoadX509KeyPair(c.files.CertFile, c.files.KeyFile)
	if err != nil {
		return fmt.Errorf("load client key pair: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = &cert
	return nil
}

// the directories are watched since tools often replace cert files
// instead of writing them in place
func (c *clientCerts) newWatcher() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dirs := map[string]struct{}{
		filepath.Dir(c.files.CertFile): {},
		filepath.Dir(c.files.KeyFile):  {},
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

func (c *clientCerts) isCertFile(name string) bool {
	name = filepath.Clean(name)
	return name == filepath.Clean(c.files.CertFile) ||
		name == filepath.Clean(c.files.KeyFile)
}

func (c *clientCerts) watch(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("context done, stopping cert reload")
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !c.isCertFile(event.Name) ||
				!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			c.log.Debug("change detected",
				log.String("file", event.Name), log.String("op", event.Op.String()))
			// cert and key may be written one after another, the previous
			// pair stays active until both match again
			if err := c.loadCert(); err != nil {
				c.log.Warn("could not reload cert", log.ErrorField(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.log.Error("watcher error", log.ErrorField(err))
		}
	}
}
