// Package feed parses upstream records into engine events.
//
// Two record shapes are understood. The action shape carries named fields
// ({"id", "inputs":[{"signingAddress"}], "outputs":[{"namespaceSelector",
// ...}]}). The positional shape is what Planaria-style crawlers emit
// ({"tx":{"h"}, "in":[{"e":{"a"}}], "out":[{"i":0,"s2":...}]}), where
// output 0 carries the namespace at s2, user id at s3, keys at h4 and h5,
// timestamp at s6, name at s7 and photo URL at s8.
//
// Parsing happens once, here. Anything missing a required field becomes a
// *MalformedError, which the Reader turns into a malformed event rather
// than a stream error.
package feed
