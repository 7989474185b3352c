package directory

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"

	"dirauth/pkg/errors"
)

// Process-wide directory-library state, set once by Initialize.
var (
	initOnce    sync.Once
	initErr     error
	initialized bool
	rootCAs     *x509.CertPool
)

// Initialize loads the trust anchors used for every SSL/StartTLS session.
// It must be called once before the first Conn is used; subsequent calls
// are no-ops and return the result of the first.
func Initialize(caPath string) error {
	initOnce.Do(func() {
		if caPath == "" {
			rootCAs, initErr = x509.SystemCertPool()
			if initErr != nil {
				initErr = fmt.Errorf("loading system cert pool: %w", initErr)
				return
			}
			initialized = true
			return
		}

		pem, err := os.ReadFile(caPath)
		if err != nil {
			initErr = fmt.Errorf("reading CA bundle %s: %w", caPath, err)
			return
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			initErr = fmt.Errorf("no certificates parsed from %s", caPath)
			return
		}

		rootCAs = pool
		initialized = true
	})
	return initErr
}

// tlsConfig builds the per-dial TLS configuration from the process-wide
// trust anchors.
func tlsConfig(serverName string) (*tls.Config, error) {
	if !initialized {
		return nil, errors.ErrNotInitialized
	}
	return &tls.Config{
		RootCAs:    rootCAs,
		ServerName: serverName,
	}, nil
}
