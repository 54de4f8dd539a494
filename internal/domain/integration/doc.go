// Package integration contains the delivery partner integration context.
//
// Key concepts:
//   - PartnerCode: the three supported delivery partners (Jahez, HungerStation, Keeta)
//   - PartnerAdapter: port that turns one partner's webhook payloads and status
//     vocabulary into the canonical ordering model and back
//   - IntegrationRecord: per-partner configuration and connection health
//   - Credentials: decrypted secrets handed to outbound clients, never persisted as-is
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in internal/infrastructure/delivery
package integration
