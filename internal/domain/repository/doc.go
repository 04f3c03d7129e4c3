// Package repository define los contratos de dominio del core administrativo,
// independientes del almacenamiento subyacente (memoria, PostgreSQL).
//
// Las implementaciones concretas viven en internal/store/adapters/.
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────┐
//	│        dispatch / audit / app (servicios)           │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)               │
//	│   RecordStore, RecordTx, AuditRepository            │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	              ┌─────────┴─────────┐
//	              ▼                   ▼
//	      ┌─────────────┐     ┌─────────────┐
//	      │  adapters/  │     │  adapters/  │
//	      │   memory    │     │     pg      │
//	      └─────────────┘     └─────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de dominio están en errors.go
package repository
