package storage

const schema = `
CREATE TABLE IF NOT EXISTS providers (
	id               BIGSERIAL PRIMARY KEY,
	user_id          TEXT NOT NULL,
	provider_name    TEXT NOT NULL,
	api_key          TEXT NOT NULL DEFAULT '',
	endpoint_url     TEXT NOT NULL DEFAULT '',
	is_valid         BOOLEAN NOT NULL DEFAULT FALSE,
	prefer           BOOLEAN NOT NULL DEFAULT FALSE,
	model_type       TEXT NOT NULL DEFAULT '',
	encrypted_config TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, provider_name)
);

CREATE INDEX IF NOT EXISTS providers_user_idx ON providers (user_id);

CREATE TABLE IF NOT EXISTS user_configs (
	id           BIGSERIAL PRIMARY KEY,
	user_id      TEXT NOT NULL,
	config_name  TEXT NOT NULL,
	config_value TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, config_name)
);
`
