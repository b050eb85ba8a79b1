// Package config loads folio's configuration from the environment with an
// optional YAML overlay.
//
// Server:
//
//	FOLIO_HOST="0.0.0.0"
//	FOLIO_PORT="8080"
//	FOLIO_READ_TIMEOUT="15s"
//	FOLIO_WRITE_TIMEOUT="60s"
//
// Database and cache:
//
//	DATABASE_URL="postgres://folio@localhost/folio?sslmode=disable"
//	FOLIO_DB_REPLICAS="postgres://replica1/folio,postgres://replica2/folio"
//	FOLIO_DB_MAX_CONNS="20"
//	REDIS_URL="redis://localhost:6379/0"   # optional
//
// Manuscript storage:
//
//	FOLIO_STORAGE_BACKEND="fs"             # fs or s3
//	FOLIO_STORAGE_DIR="/var/lib/folio/manuscripts"
//	FOLIO_S3_BUCKET="folio-manuscripts"
//	FOLIO_MAX_UPLOAD_MB="16"
//
// Workflow policy (all default false):
//
//	FOLIO_STRICT_TRANSITIONS, FOLIO_GUARD_REASSIGN, FOLIO_UNIQUE_REVIEWERS
//
// Observability:
//
//	FOLIO_LOG_LEVEL="info"                 # debug, info, warn, error
//	FOLIO_LOG_FORMAT="text"                # text or json
//	FOLIO_METRICS_ENABLED="true"
//	FOLIO_OTEL_ENABLED="false"
//	FOLIO_OTEL_ENDPOINT="localhost:4317"
//
// FOLIO_CONFIG_FILE names a YAML file applied on top of the environment;
// keys present in the file win. Watch reloads that file when it changes.
package config
