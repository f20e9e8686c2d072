// Package types contains the shared types and interfaces of the changefeed
// library.
//
// It exists as a leaf package so that internal packages can depend on the
// core types without importing the root changefeed package, which would
// create an import cycle. The root package re-exports the commonly used
// definitions via type aliases.
package types
