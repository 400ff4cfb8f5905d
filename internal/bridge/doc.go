// Package bridge connects the headset application to the workflow driver.
//
// The headset speaks JSON over a WebSocket at /ws. Inbound messages carry
// tracking strands, animation callbacks and commands; they become driver
// events. The Hub implements every outbound workflow collaborator and
// broadcasts each call to connected clients. A small REST surface serves the
// latest snapshot and the protein catalog, and accepts the same inbound
// messages for command-line control.
package bridge
