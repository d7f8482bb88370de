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
		Name:    "create chat messages",
		SQL: `
			CREATE TABLE chat_messages (
				seq         INTEGER PRIMARY KEY AUTOINCREMENT,
				id          TEXT NOT NULL UNIQUE,
				room_id     TEXT NOT NULL,
				sender_id   TEXT NOT NULL,
				sender_name TEXT NOT NULL DEFAULT '',
				sender_role TEXT NOT NULL,
				body        TEXT NOT NULL,
				media_url   TEXT NOT NULL DEFAULT '',
				created_at  INTEGER NOT NULL
			);

			CREATE INDEX idx_chat_messages_room ON chat_messages (room_id, created_at, seq);
		`,
	},
	{
		Version: 2,
		Name:    "create products",
		SQL: `
			CREATE TABLE products (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				price       INTEGER NOT NULL DEFAULT 0,
				type        TEXT NOT NULL DEFAULT '',
				sizes       TEXT NOT NULL DEFAULT '[]',
				bestseller  INTEGER NOT NULL DEFAULT 0,
				image       TEXT NOT NULL DEFAULT '',
				created_at  INTEGER NOT NULL
			);

			CREATE INDEX idx_products_type ON products (type);
			CREATE INDEX idx_products_rank ON products (bestseller DESC, created_at DESC);
		`,
	},
}
