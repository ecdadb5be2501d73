// Package repository define las entidades y los puertos de persistencia del dominio social login.
//
// Estas interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente. Las implementaciones viven en internal/store/memory
// (single instance) e internal/store/pg (PostgreSQL); los estados CSRF pueden
// además vivir en Redis a través de internal/cache.
//
//	┌─────────────────────────────────────────────────────┐
//	│        internal/social (StateStore, Provisioner,    │
//	│        ConnectionStore, Service)                    │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)               │
//	│  UserRepository, ConnectionRepository,              │
//	│  StateRepository                                    │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	         ┌──────────────┼──────────────┐
//	         ▼              ▼              ▼
//	┌─────────────┐  ┌─────────────┐  ┌─────────────┐
//	│ store/memory│  │  store/pg   │  │    cache    │
//	└─────────────┘  └─────────────┘  └─────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Uniqueness is enforced by the storage layer and reported through the
//     conflict errors in errors.go, never by a separate existence check.
package repository
