package db

// SchemaSQL contains the catalog cache schema. Area and device link by
// plain string keys; entity rows denormalize area_id and domain so the
// pipeline's scoped listings stay single-table queries.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS area SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS area_id ON area TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON area TYPE string;
    DEFINE INDEX IF NOT EXISTS area_key ON area FIELDS area_id UNIQUE;

    DEFINE TABLE IF NOT EXISTS device SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS device_id ON device TYPE string;
    DEFINE FIELD IF NOT EXISTS area_id ON device TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS name ON device TYPE string;
    DEFINE FIELD IF NOT EXISTS manufacturer ON device TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS model ON device TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS description ON device TYPE option<string>;
    DEFINE INDEX IF NOT EXISTS device_key ON device FIELDS device_id UNIQUE;
    DEFINE INDEX IF NOT EXISTS device_area ON device FIELDS area_id;

    DEFINE TABLE IF NOT EXISTS entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS entity_id ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS device_id ON entity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS area_id ON entity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS domain ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS state ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS attributes ON entity TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS supported_features ON entity TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS updated ON entity TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS entity_key ON entity FIELDS entity_id UNIQUE;
    DEFINE INDEX IF NOT EXISTS entity_domain ON entity FIELDS domain;
    DEFINE INDEX IF NOT EXISTS entity_area ON entity FIELDS area_id;

    DEFINE TABLE IF NOT EXISTS service_catalog SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS domain ON service_catalog TYPE string;
    DEFINE FIELD IF NOT EXISTS position ON service_catalog TYPE int;
    DEFINE FIELD IF NOT EXISTS name ON service_catalog TYPE string;
    DEFINE FIELD IF NOT EXISTS targets ON service_catalog TYPE option<array> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS fields ON service_catalog TYPE option<array> FLEXIBLE;
    DEFINE INDEX IF NOT EXISTS service_domain ON service_catalog FIELDS domain;
`
