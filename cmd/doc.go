// Package cmd implements the command-line interface of memento. It provides a
// hierarchical command structure to operate a vault on a shared medium.
//
// The package is organized into several subpackages:
//
//   - inventory: Commands to read the inventory document (read, info)
//   - item: Commands to save, delete, list and print items
//   - media: Commands to upload and fetch media blobs and to delete orphaned ones
//   - lock: Commands to inspect, acquire and release the advisory lock
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See memento -help for a list of all commands.
package cmd
