package postgres

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				enabled BOOLEAN NOT NULL DEFAULT true,
				trigger JSONB NOT NULL,
				steps JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_enabled ON workflows(enabled);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE executions (
				workflow_id VARCHAR(255) NOT NULL,
				id VARCHAR(255) NOT NULL,
				workflow_name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				trigger_type VARCHAR(50) NOT NULL,
				trigger_data JSONB DEFAULT '{}',
				steps JSONB NOT NULL DEFAULT '[]',
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_expires_at ON executions(expires_at);

			CREATE TABLE poll_states (
				workflow_id VARCHAR(255) PRIMARY KEY,
				seen_item_ids JSONB NOT NULL DEFAULT '[]',
				last_content_hash VARCHAR(64),
				last_checked_at TIMESTAMP WITH TIME ZONE,
				consecutive_failures INT NOT NULL DEFAULT 0,
				last_error TEXT
			);

			CREATE TABLE schedule_rules (
				name VARCHAR(255) PRIMARY KEY,
				schedule_expr VARCHAR(255) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT true,
				target JSONB NOT NULL DEFAULT '{}',
				next_due_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_schedule_rules_active ON schedule_rules(active);
			CREATE INDEX idx_schedule_rules_next_due_at ON schedule_rules(next_due_at);
		`,
	}
}
