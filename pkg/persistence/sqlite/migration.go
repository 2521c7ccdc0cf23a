package sqlite

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				space_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT,
				is_default INTEGER NOT NULL DEFAULT 0,
				ai_optimized INTEGER NOT NULL DEFAULT 0,
				version INTEGER NOT NULL CHECK (version >= 1),
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL,
				created_by TEXT NOT NULL,
				updated_by TEXT NOT NULL
			);

			CREATE INDEX idx_workflows_space_id ON workflows(space_id);
			CREATE UNIQUE INDEX idx_workflows_space_default ON workflows(space_id) WHERE is_default = 1;

			CREATE TABLE workflow_statuses (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				version INTEGER NOT NULL,
				status_key TEXT NOT NULL,
				name TEXT NOT NULL,
				category TEXT NOT NULL CHECK (category IN ('TODO', 'IN_PROGRESS', 'DONE')),
				color TEXT,
				is_initial INTEGER NOT NULL DEFAULT 0,
				is_final INTEGER NOT NULL DEFAULT 0,
				sort_order INTEGER NOT NULL,
				visibility_rules TEXT,
				field_lock_rules TEXT,
				status_ref_id TEXT,
				UNIQUE (workflow_id, version, status_key)
			);

			CREATE INDEX idx_workflow_statuses_snapshot ON workflow_statuses(workflow_id, version);

			CREATE TABLE workflow_transitions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				version INTEGER NOT NULL,
				transition_key TEXT,
				name TEXT NOT NULL,
				from_id TEXT NOT NULL,
				to_id TEXT NOT NULL,
				from_key TEXT NOT NULL,
				to_key TEXT NOT NULL,
				sort_order INTEGER NOT NULL,
				ui_trigger TEXT CHECK (ui_trigger IN ('button', 'menu', 'automatic')),
				conditions TEXT,
				validators TEXT,
				post_functions TEXT,
				UNIQUE (workflow_id, version, from_key, to_key)
			);

			CREATE INDEX idx_workflow_transitions_snapshot ON workflow_transitions(workflow_id, version);

			CREATE TABLE workflow_audits (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				action TEXT NOT NULL CHECK (action IN ('CREATED', 'UPDATED', 'RESTORED')),
				actor TEXT NOT NULL,
				version INTEGER NOT NULL,
				changed_fields TEXT,
				created_at INTEGER NOT NULL
			);

			CREATE INDEX idx_workflow_audits_workflow_id ON workflow_audits(workflow_id, version);

			CREATE TABLE workflow_template_links (
				template_id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id)
			);

			CREATE INDEX idx_workflow_template_links_workflow_id ON workflow_template_links(workflow_id);

			CREATE TABLE workflow_task_assignments (
				task_id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id),
				version INTEGER NOT NULL,
				assigned_at INTEGER NOT NULL
			);

			CREATE INDEX idx_workflow_task_assignments_workflow_id ON workflow_task_assignments(workflow_id);
		`,
	}
}
