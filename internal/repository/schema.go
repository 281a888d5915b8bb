package repository

// Schema holds the DDL for the tables this package reads and writes. The
// seed command applies it with CREATE IF NOT EXISTS semantics; production
// deployments are expected to manage migrations externally.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id UUID PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	email TEXT UNIQUE NOT NULL,
	hashed_password TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS workflows (
	thread_id TEXT PRIMARY KEY,
	owner_id UUID NOT NULL REFERENCES users(user_id),
	state JSONB NOT NULL,
	status TEXT NOT NULL,
	version INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS workflows_owner_updated_idx
	ON workflows (owner_id, last_updated_at DESC);
`
