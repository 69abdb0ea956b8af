package sqlstore

// Timestamps are Unix milliseconds in both dialects.
// users is not referenced by foreign keys: profiles are synced best effort
// on sign-in and a missing profile must not block group operations.

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    name TEXT NOT NULL,
    avatar_url TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    owner_id TEXT NOT NULL,
    invite_code TEXT NOT NULL UNIQUE,
    max_members INTEGER NOT NULL DEFAULT 50 CHECK (max_members >= 1),
    praise_cooldown_value INTEGER NOT NULL DEFAULT 1,
    praise_cooldown_unit TEXT NOT NULL DEFAULT 'day',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('admin', 'member')),
    joined_at INTEGER NOT NULL,
    left_at INTEGER,
    is_active INTEGER NOT NULL DEFAULT 1,
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS praise_messages (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    sender_id TEXT NOT NULL,
    receiver_id TEXT NOT NULL,
    emoji TEXT NOT NULL,
    message TEXT,
    is_public INTEGER NOT NULL DEFAULT 1,
    is_anonymous INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS praise_cooldowns (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    sender_id TEXT NOT NULL,
    receiver_id TEXT NOT NULL,
    last_praised_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE (group_id, sender_id, receiver_id),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_group_members_active ON group_members(group_id, user_id) WHERE is_active = 1;
CREATE UNIQUE INDEX IF NOT EXISTS idx_group_members_one_admin ON group_members(group_id) WHERE is_active = 1 AND role = 'admin';
CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id);
CREATE INDEX IF NOT EXISTS idx_praise_messages_group_id ON praise_messages(group_id, created_at);
CREATE INDEX IF NOT EXISTS idx_praise_messages_sender_id ON praise_messages(sender_id);
CREATE INDEX IF NOT EXISTS idx_praise_messages_receiver_id ON praise_messages(receiver_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    name TEXT NOT NULL,
    avatar_url TEXT,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    owner_id TEXT NOT NULL,
    invite_code TEXT NOT NULL UNIQUE,
    max_members INTEGER NOT NULL DEFAULT 50 CHECK (max_members >= 1),
    praise_cooldown_value INTEGER NOT NULL DEFAULT 1,
    praise_cooldown_unit TEXT NOT NULL DEFAULT 'day',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('admin', 'member')),
    joined_at BIGINT NOT NULL,
    left_at BIGINT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS praise_messages (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    sender_id TEXT NOT NULL,
    receiver_id TEXT NOT NULL,
    emoji TEXT NOT NULL,
    message TEXT,
    is_public BOOLEAN NOT NULL DEFAULT TRUE,
    is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS praise_cooldowns (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    sender_id TEXT NOT NULL,
    receiver_id TEXT NOT NULL,
    last_praised_at BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    UNIQUE (group_id, sender_id, receiver_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_group_members_active ON group_members(group_id, user_id) WHERE is_active;
CREATE UNIQUE INDEX IF NOT EXISTS idx_group_members_one_admin ON group_members(group_id) WHERE is_active AND role = 'admin';
CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id);
CREATE INDEX IF NOT EXISTS idx_praise_messages_group_id ON praise_messages(group_id, created_at);
CREATE INDEX IF NOT EXISTS idx_praise_messages_sender_id ON praise_messages(sender_id);
CREATE INDEX IF NOT EXISTS idx_praise_messages_receiver_id ON praise_messages(receiver_id);
`
