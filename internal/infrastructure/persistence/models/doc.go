// Package models holds the GORM table mappings for orders, their audit trail
// and partner integration records. Domain types never carry GORM tags; each
// model converts with ToDomain and a ...FromDomain constructor.
package models
