// Package models contains the GORM persistence models of the ledger.
// Domain types carry no ORM tags; each model converts to and from its
// domain type with ToDomain and a ...FromDomain constructor.
//
//   - base.go: shared columns
//   - ledger.go: batches, balances, consumption and restock trails, journal, snapshots
//   - costing.go: costing sessions, lines and item snapshots
package models
