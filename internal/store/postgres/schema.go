package postgres

// Schema documents the relational layout this package queries against
// (§6 "Persisted state layout"). Database migrations are an external
// collaborator out of scope for this core (§1); this constant is reference
// material for operators wiring up their migration tool of choice, not
// something this package executes.
const Schema = `
CREATE TABLE chain (
	id   SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE block (
	id          SERIAL PRIMARY KEY,
	chain_id    INT NOT NULL REFERENCES chain(id),
	number      BIGINT NOT NULL,
	hash        BYTEA NOT NULL UNIQUE,
	parent_hash BYTEA NOT NULL,
	ts          TIMESTAMP NOT NULL,
	inserted_ts TIMESTAMP NOT NULL DEFAULT now(),
	modified_ts TIMESTAMP NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX block_chain_number_idx ON block(chain_id, number);

CREATE TABLE transaction (
	id          SERIAL PRIMARY KEY,
	block_id    INT NOT NULL REFERENCES block(id) ON DELETE CASCADE,
	index       INT NOT NULL,
	hash        BYTEA NOT NULL UNIQUE,
	from_addr   BYTEA NOT NULL,
	to_addr     BYTEA,
	inserted_ts TIMESTAMP NOT NULL DEFAULT now(),
	modified_ts TIMESTAMP NOT NULL DEFAULT now()
);

CREATE TABLE account (
	id            SERIAL PRIMARY KEY,
	chain_id      INT NOT NULL REFERENCES chain(id),
	address       BYTEA NOT NULL,
	title         TEXT,
	creation_tx   INT REFERENCES transaction(id) ON DELETE CASCADE,
	creation_ts   TIMESTAMP,
	deleted_ts    TIMESTAMP,
	inserted_ts   TIMESTAMP NOT NULL DEFAULT now(),
	modified_ts   TIMESTAMP NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX account_chain_address_idx ON account(chain_id, address);

CREATE TABLE account_balance (
	id          SERIAL PRIMARY KEY,
	account_id  INT NOT NULL REFERENCES account(id),
	balance     BYTEA NOT NULL,
	valid_from  TIMESTAMP NOT NULL,
	valid_to    TIMESTAMP,
	modify_tx   INT NOT NULL REFERENCES transaction(id) ON DELETE CASCADE
);

CREATE TABLE contract_code (
	id          SERIAL PRIMARY KEY,
	account_id  INT NOT NULL REFERENCES account(id),
	code        BYTEA NOT NULL,
	code_hash   BYTEA NOT NULL,
	valid_from  TIMESTAMP NOT NULL,
	valid_to    TIMESTAMP,
	modify_tx   INT NOT NULL REFERENCES transaction(id) ON DELETE CASCADE
);

CREATE TABLE contract_storage (
	id          SERIAL PRIMARY KEY,
	account_id  INT NOT NULL REFERENCES account(id),
	slot        BYTEA NOT NULL,
	value       BYTEA NOT NULL,
	ordinal     INT NOT NULL,
	valid_from  TIMESTAMP NOT NULL,
	valid_to    TIMESTAMP,
	modify_tx   INT NOT NULL REFERENCES transaction(id) ON DELETE CASCADE
);
CREATE INDEX contract_storage_account_slot_idx ON contract_storage(account_id, slot);

CREATE TABLE protocol_system (
	id   SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE protocol_type (
	id   SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE protocol_component (
	id                SERIAL PRIMARY KEY,
	external_id       TEXT NOT NULL,
	chain_id          INT NOT NULL REFERENCES chain(id),
	protocol_system_id INT NOT NULL REFERENCES protocol_system(id),
	protocol_type_id  INT NOT NULL REFERENCES protocol_type(id),
	static_attributes JSONB NOT NULL DEFAULT '{}',
	creation_tx       INT NOT NULL REFERENCES transaction(id) ON DELETE CASCADE,
	created_at        TIMESTAMP NOT NULL,
	deleted_at        TIMESTAMP,
	inserted_ts       TIMESTAMP NOT NULL DEFAULT now(),
	modified_ts       TIMESTAMP NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX protocol_component_identity_idx ON protocol_component(chain_id, protocol_system_id, external_id);

CREATE TABLE protocol_component_holds_token (
	protocol_component_id INT NOT NULL REFERENCES protocol_component(id),
	token_address         BYTEA NOT NULL
);

CREATE TABLE protocol_component_holds_contract (
	protocol_component_id INT NOT NULL REFERENCES protocol_component(id),
	account_id            INT NOT NULL REFERENCES account(id)
);

CREATE TABLE protocol_state (
	id              SERIAL PRIMARY KEY,
	component_id    INT NOT NULL REFERENCES protocol_component(id),
	attribute_name  TEXT NOT NULL,
	attribute_value BYTEA,
	valid_from      TIMESTAMP NOT NULL,
	valid_to        TIMESTAMP,
	modify_tx       INT NOT NULL REFERENCES transaction(id) ON DELETE CASCADE
);
CREATE INDEX protocol_state_component_attr_idx ON protocol_state(component_id, attribute_name);

CREATE TABLE component_balance (
	id           SERIAL PRIMARY KEY,
	component_id INT NOT NULL REFERENCES protocol_component(id),
	token        BYTEA NOT NULL,
	new_balance  BYTEA NOT NULL,
	valid_from   TIMESTAMP NOT NULL,
	valid_to     TIMESTAMP,
	modify_tx    INT NOT NULL REFERENCES transaction(id) ON DELETE CASCADE
);

CREATE TABLE token (
	account_id INT PRIMARY KEY REFERENCES account(id),
	symbol     TEXT NOT NULL,
	decimals   SMALLINT NOT NULL,
	tax        INT NOT NULL DEFAULT 0,
	gas_cost   BIGINT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE extraction_state (
	extractor_name TEXT NOT NULL,
	chain_id       INT NOT NULL REFERENCES chain(id),
	attributes     JSONB NOT NULL DEFAULT '{}',
	cursor         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (extractor_name, chain_id)
);
`
