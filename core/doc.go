// Package core implements the cross-world message exchange for worldex.
//
// Every world is registered with an Exchange before it starts and receives a
// Channel. Starting the exchange freezes the registry and spawns a Router
// that forwards each Message from its sending channel to the channel of its
// destination, stamping the sender on the way. A Worker owns one world and
// executes the commands delivered to it; commands may send further messages,
// including replies to their sender.
//
// Data crosses worlds only by value: Spawn, Insert, CloneQuery,
// CopyComponent and MoveKeyed transfer components as allowed by the source
// world's schema.
package core
