package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

// ExpiryWarningWindow is how close to NotAfter a serving certificate gets
// before every reload logs a warning.
const ExpiryWarningWindow = 30 * 24 * time.Hour

// Leaf returns the parsed leaf of cert.
func Leaf(cert *tls.Certificate) (*x509.Certificate, error) {
	if cert == nil {
		return nil, fmt.Errorf("certificate is nil")
	}
	if cert.Leaf != nil {
		return cert.Leaf, nil
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("certificate chain is empty")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return leaf, nil
}

// ValidateCertificate rejects a certificate that is not valid at now.
func ValidateCertificate(cert *tls.Certificate, now time.Time) error {
	leaf, err := Leaf(cert)
	if err != nil {
		return err
	}
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// ExpiresSoon reports whether leaf expires within ExpiryWarningWindow of now,
// along with the whole days remaining.
func ExpiresSoon(leaf *x509.Certificate, now time.Time) (bool, int) {
	remaining := leaf.NotAfter.Sub(now)
	return remaining < ExpiryWarningWindow, int(remaining.Hours() / 24)
}
