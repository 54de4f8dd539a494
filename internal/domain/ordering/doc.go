// Package ordering holds the canonical order model shared by every delivery
// partner: the Order aggregate, its status state machine, the append-only
// audit trail and the ports the application layer depends on.
//
// Partner payloads never reach this package directly. Adapters in the
// infrastructure layer turn them into a NormalizedOrder first, and the
// orchestrator turns that into an Order:
//
//	partner JSON -> PartnerAdapter.Normalize -> NormalizedOrder -> NewOrder -> Order
//
// The state graph is:
//
//	received -> preparing -> ready -> completed
//	    |           |          |
//	    +-----------+----------+--> cancelled
//
// completed and cancelled are terminal.
package ordering
