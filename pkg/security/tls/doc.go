// Package tls builds the server's crypto/tls configuration from
// config.TLSConfig.
//
// The certificate pair is loaded and checked for validity at startup.
// Setting client_ca_file turns on mutual TLS: every client must present a
// certificate chained to one of those CAs.
//
//	tlsCfg, err := tls.ServerConfig(&cfg.Server.TLS)
//	if err != nil {
//		return err
//	}
//	checker.RegisterCheck("tls", tls.ExpiryCheck(tlsCfg, 7*24*time.Hour))
//
// # Certificate Rotation
//
// With reload set, a CertificateReloader watches the directories holding
// the pair with fsnotify and swaps in the new certificate through
// tls.Config.GetCertificate once writes settle:
//
//	reloader, err := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, logger)
//	if err != nil {
//		return err
//	}
//	reloader.Apply(tlsCfg)
//	if err := reloader.Start(ctx); err != nil {
//		return err
//	}
package tls
