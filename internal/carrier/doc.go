// Package carrier runs the tRNA carriers that parade across the ribosome.
//
// Each carrier is a small state machine (Entering, Settled, Exiting, Removed)
// advanced by animation-finished signals from the headset, with a timeout
// fallback so a lost signal never stalls the lab. Queue bounds how many
// carriers are on stage, admits them strictly in codon order, and evicts the
// oldest settled carrier when a new one needs room. Waits are stored per unit
// id and resumed by Report calls or by Tick; nothing here blocks.
package carrier
