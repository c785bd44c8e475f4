// Package models holds the GORM rows of the loan engine. The domain types in
// internal/domain/lending carry no ORM tags; each model converts to and from
// its aggregate with ToDomain and FromDomain.
//
// Money is stored as BIGINT minor units and business dates as DATE columns.
// The schema itself is owned by the SQL migrations; AutoMigrateLending is for
// SQLite test databases only.
package models
