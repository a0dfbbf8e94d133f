/*
Package security groups the transport and client security of the limitr
server.

  - security/tls builds the HTTPS listener configuration, optionally with
    mutual TLS, and reports certificate expiry as a health check.
  - security/auth authenticates API clients by key or JWT and binds each
    client to an optional per-client limiter.

Both are driven by the server section of the configuration:

	server:
	  tls:
	    enabled: true
	    cert_file: /etc/limitr/tls/server.crt
	    key_file: /etc/limitr/tls/server.key
	  auth:
	    enabled: true
	    keys:
	      - client: mobile
	        key_env: LIMITR_MOBILE_KEY
	        limiter: per-client
	    jwt:
	      enabled: true
	      secret_env: LIMITR_JWT_SECRET
	      issuer: auth.example.com
	      limiter: tokens
*/
package security
