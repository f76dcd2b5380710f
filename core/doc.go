// Package core defines the domain types shared across Vigia: cached
// alerts, operator annotations, sync logs, and the filter/statistics
// structures the storage and API layers exchange.
package core
