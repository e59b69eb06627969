package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversations and messages",
		SQL: `
			CREATE TABLE conversations (
				id           TEXT PRIMARY KEY,
				session_key  TEXT NOT NULL,
				summary      TEXT NOT NULL DEFAULT '',
				created_at   TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE UNIQUE INDEX idx_conversations_key ON conversations (session_key);

			CREATE TABLE messages (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id  TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				role             TEXT NOT NULL,
				parts            TEXT NOT NULL,
				tool_call_id     TEXT NOT NULL DEFAULT '',
				tool_name        TEXT NOT NULL DEFAULT '',
				meta             TEXT,
				timestamp        TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_messages_conversation ON messages (conversation_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create credit accounts and receipts",
		SQL: `
			CREATE TABLE credit_accounts (
				id       TEXT PRIMARY KEY,
				balance  INTEGER NOT NULL
			);

			CREATE TABLE credit_receipts (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				account_id       TEXT NOT NULL,
				request_id       TEXT NOT NULL,
				action_type      TEXT NOT NULL,
				model            TEXT NOT NULL DEFAULT '',
				input_tokens     INTEGER NOT NULL DEFAULT 0,
				output_tokens    INTEGER NOT NULL DEFAULT 0,
				credits_charged  INTEGER NOT NULL,
				metadata         TEXT,
				timestamp        TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_receipts_account ON credit_receipts (account_id, id);
		`,
	},
}
