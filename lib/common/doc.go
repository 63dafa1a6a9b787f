// Package common provides the configuration and logging shared by the memento
// libraries and the command-line interface.
//
// Key Components:
//
//   - ClientConfig: Selects the medium backend and its connection parameters, the
//     lock protocol parameters (TTL, retry count, retry delay), the document codec
//     and the blob encoding. DefaultClientConfig returns the protocol defaults
//     (5 minute TTL, 3 retries, 1 second delay).
//
//   - Logger: An implementation of dragonboat's logger.ILogger that writes through
//     log/slog with a tint handler. Packages obtain named loggers with
//     logger.GetLogger(name); InitLoggers installs the factory and sets the level.
package common
