// Package logx configures bgflow's structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Noisy call sites bounded via Sampled (token-bucket rate limiting)
//
// The zero Logger is a valid no-op logger, so components can hold a Logger
// field without nil checks.
package logx
