package sqlstore

// 时间字段统一存 unix 毫秒。
const schema = `
CREATE TABLE IF NOT EXISTS contracts (
	id               TEXT PRIMARY KEY,
	slug             TEXT NOT NULL DEFAULT '',
	question         TEXT NOT NULL DEFAULT '',
	creator_id       TEXT NOT NULL,
	outcome_type     TEXT NOT NULL,
	visibility       TEXT NOT NULL,
	close_time       INTEGER NOT NULL,
	created_time     INTEGER NOT NULL,
	conversion_score REAL NOT NULL DEFAULT 0,
	freshness_score  REAL NOT NULL DEFAULT 0,
	importance_score REAL NOT NULL DEFAULT 0,
	view_count       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_contracts_importance ON contracts(importance_score DESC);
CREATE INDEX IF NOT EXISTS idx_contracts_creator ON contracts(creator_id);

CREATE TABLE IF NOT EXISTS group_contracts (
	group_id    TEXT NOT NULL,
	contract_id TEXT NOT NULL,
	PRIMARY KEY (group_id, contract_id)
);
CREATE INDEX IF NOT EXISTS idx_group_contracts_contract ON group_contracts(contract_id);

CREATE TABLE IF NOT EXISTS user_contract_views (
	user_id      TEXT NOT NULL,
	contract_id  TEXT NOT NULL,
	last_view_ts INTEGER NOT NULL,
	PRIMARY KEY (user_id, contract_id)
);
CREATE INDEX IF NOT EXISTS idx_views_ts ON user_contract_views(last_view_ts);

CREATE TABLE IF NOT EXISTS user_disinterests (
	user_id     TEXT NOT NULL,
	contract_id TEXT NOT NULL,
	PRIMARY KEY (user_id, contract_id)
);

CREATE TABLE IF NOT EXISTS user_follows (
	user_id   TEXT NOT NULL,
	follow_id TEXT NOT NULL,
	PRIMARY KEY (user_id, follow_id)
);

CREATE TABLE IF NOT EXISTS contract_comments (
	comment_id   TEXT PRIMARY KEY,
	contract_id  TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	text         TEXT NOT NULL DEFAULT '',
	likes        INTEGER NOT NULL DEFAULT 0,
	hidden       INTEGER NOT NULL DEFAULT 0,
	bet_id       TEXT NOT NULL DEFAULT '',
	created_time INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contract_bets (
	bet_id       TEXT PRIMARY KEY,
	contract_id  TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	amount       REAL NOT NULL DEFAULT 0,
	outcome      TEXT NOT NULL DEFAULT '',
	created_time INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id                  TEXT PRIMARY KEY,
	contract_id         TEXT NOT NULL,
	contract_comment_id TEXT NOT NULL,
	bet_id              TEXT NOT NULL DEFAULT '',
	user_id             TEXT NOT NULL,
	user_name           TEXT NOT NULL DEFAULT '',
	user_username       TEXT NOT NULL DEFAULT '',
	user_avatar_url     TEXT NOT NULL DEFAULT '',
	created_time        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_time);

CREATE TABLE IF NOT EXISTS user_topic_interests (
	user_id  TEXT NOT NULL,
	group_id TEXT NOT NULL,
	score    REAL NOT NULL,
	PRIMARY KEY (user_id, group_id)
);

CREATE TABLE IF NOT EXISTS group_members (
	member_id TEXT NOT NULL,
	group_id  TEXT NOT NULL,
	PRIMARY KEY (member_id, group_id)
);
`
