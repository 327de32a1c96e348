// Package config defines the format-agnostic configuration model of the
// server, its defaults and its validation rules.
//
// Concrete loaders live in separate packages; the HCL one is in
// hcl_adapter. Whatever the source, a loaded Model is run through
// Validate before the application uses it, and command line flags are
// applied on top with Override.
package config
