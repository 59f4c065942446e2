package postgresql

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		voice TEXT NOT NULL,
		language TEXT NOT NULL,
		welcome_message TEXT NOT NULL DEFAULT '',
		exit_message TEXT NOT NULL DEFAULT '',
		icon_position TEXT NOT NULL DEFAULT 'bottom-right',
		icon_size TEXT NOT NULL DEFAULT 'medium',
		icon_color TEXT NOT NULL DEFAULT '#000000',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_user ON agents (user_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		agent_id UUID NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		room_name TEXT NOT NULL,
		end_user_id TEXT NOT NULL,
		end_user_email TEXT,
		end_user_phone TEXT,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'ended')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ended_at TIMESTAMPTZ,
		CONSTRAINT sessions_ended_at_status CHECK ((status = 'ended') = (ended_at IS NOT NULL)),
		CONSTRAINT sessions_ended_after_created CHECK (ended_at IS NULL OR ended_at >= created_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions (agent_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions (created_at) WHERE status = 'active'`,
}
