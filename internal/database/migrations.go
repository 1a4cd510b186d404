package database

const schema = `
CREATE TABLE IF NOT EXISTS mail_accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL,
    address TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'imap',
    active BOOLEAN DEFAULT true,
    catch_all BOOLEAN DEFAULT false,
    imap_host TEXT NOT NULL DEFAULT '',
    imap_port INTEGER NOT NULL DEFAULT 993,
    use_tls BOOLEAN DEFAULT true,
    password TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(owner_id, address, kind)
);

CREATE TABLE IF NOT EXISTS oauth_credentials (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL,
    address TEXT NOT NULL,
    access_token TEXT NOT NULL,
    token_type TEXT NOT NULL DEFAULT '',
    refresh_token TEXT NOT NULL DEFAULT '',
    expiry DATETIME,
    scope TEXT NOT NULL DEFAULT '',
    active BOOLEAN DEFAULT true,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(owner_id, address)
);

CREATE TABLE IF NOT EXISTS access_keys (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL,
    platform TEXT NOT NULL,
    alias TEXT NOT NULL,
    secret TEXT NOT NULL,
    active BOOLEAN DEFAULT true,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(platform, alias)
);

CREATE INDEX IF NOT EXISTS idx_accounts_owner ON mail_accounts(owner_id);
CREATE INDEX IF NOT EXISTS idx_accounts_catchall ON mail_accounts(owner_id, catch_all, active);
CREATE INDEX IF NOT EXISTS idx_credentials_owner ON oauth_credentials(owner_id, address);
CREATE INDEX IF NOT EXISTS idx_access_keys_owner ON access_keys(owner_id);
`
