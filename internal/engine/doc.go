// Package engine contains the simulation loop and the factory subsystems.
//
// ARCHITECTURAL RULE: the host only calls Engine.Tick and the mutation entry
// points. The Scheduler decides which subsystem runs on a tick; subsystems
// never call each other's Process methods and never block on I/O.
package engine
