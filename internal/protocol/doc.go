// Package protocol describes which upstream transactions are candidates for
// the profile pipeline.
//
// A Route is pure data: an output index, opcode markers at fixed cell
// positions and the namespace identifier at a fixed string cell. Feeds
// receive it as a subscription filter (Route.Find) and deliver only matching
// transactions. Matching is a routing contract, not a validity proof: every
// delivered transaction must still pass the validator.
package protocol
