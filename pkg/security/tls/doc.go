/*
Package tls serves the gateway's TLS certificate from disk and reloads it
when the files are replaced.

	reloader := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, logger)
	if err := reloader.Load(); err != nil {
		return err
	}
	go reloader.Watch(ctx)

	srv.TLSConfig = &cryptotls.Config{
		MinVersion:     cryptotls.VersionTLS13,
		GetCertificate: reloader.GetCertificate,
	}

A replacement pair that is unreadable, mismatched or outside its validity
window is rejected and the previous certificate keeps serving. Loads log a
warning once the certificate is within ExpiryWarningWindow of expiring.
*/
package tls
