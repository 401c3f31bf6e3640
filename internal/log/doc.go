// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Wiki session identifiers (JSESSIONID and friends)
//   - Login form fields and LLM endpoint API keys
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored. A mirror run
// carries real wiki credentials from login to the last request, so every
// logger in this codebase is a secure one.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("request sent",
//	    "cookie", "JSESSIONID=abc123",  // Will be sanitized
//	    "url", "https://wiki.example.com/pages/viewpage.action?pageId=1",
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
