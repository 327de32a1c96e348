// internal/nodeid/doc.go

/*
Package nodeid provides the identifier type shared by every node and edge of
a flow graph.

Identifiers are opaque strings. Entities created locally by the editor carry
a temporary identifier of the form `tmp-<uuid>` until the persistence layer
assigns the permanent one; identifiers handed out by a store never use the
`tmp-` prefix.

This package enforces the identifier schema and centralizes all formatting
and parsing logic.
*/
package nodeid
