// Package trigger defines the value types that describe a trigger: an
// ordered list of keys, each with a click type and device binding, and the
// mode that combines them.
//
// Triggers are immutable configuration. They are validated once when a
// binding is built (see Validate) and never at dispatch time.
package trigger
