// Package logging provides structured logging for the Fora miio bridge.
//
// It wraps Go's standard log/slog package to give every component
// consistent, structured output with service and version default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting bridge", "app_id", cfg.App.ID)
//	logger.Error("directory fetch failed", "error", err)
//
// Never log the app token or device tokens.
package logging
