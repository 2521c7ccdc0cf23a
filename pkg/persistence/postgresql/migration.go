package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				space_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				is_default BOOLEAN NOT NULL DEFAULT false,
				ai_optimized BOOLEAN NOT NULL DEFAULT false,
				version INTEGER NOT NULL CHECK (version >= 1),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_by VARCHAR(255) NOT NULL,
				updated_by VARCHAR(255) NOT NULL
			);

			CREATE INDEX idx_workflows_space_id ON workflows(space_id);
			CREATE UNIQUE INDEX idx_workflows_space_default ON workflows(space_id) WHERE is_default;

			-- JSON, not JSONB: payloads are stored verbatim.
			CREATE TABLE workflow_statuses (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				version INTEGER NOT NULL,
				status_key VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				category VARCHAR(20) NOT NULL CHECK (category IN ('TODO', 'IN_PROGRESS', 'DONE')),
				color VARCHAR(32),
				is_initial BOOLEAN NOT NULL DEFAULT false,
				is_final BOOLEAN NOT NULL DEFAULT false,
				sort_order INTEGER NOT NULL,
				visibility_rules JSON,
				field_lock_rules JSON,
				status_ref_id VARCHAR(255),
				UNIQUE (workflow_id, version, status_key)
			);

			CREATE INDEX idx_workflow_statuses_snapshot ON workflow_statuses(workflow_id, version);

			CREATE TABLE workflow_transitions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				version INTEGER NOT NULL,
				transition_key VARCHAR(255),
				name VARCHAR(255) NOT NULL,
				from_id UUID NOT NULL,
				to_id UUID NOT NULL,
				from_key VARCHAR(255) NOT NULL,
				to_key VARCHAR(255) NOT NULL,
				sort_order INTEGER NOT NULL,
				ui_trigger VARCHAR(20) CHECK (ui_trigger IN ('button', 'menu', 'automatic')),
				conditions JSON,
				validators JSON,
				post_functions JSON,
				UNIQUE (workflow_id, version, from_key, to_key)
			);

			CREATE INDEX idx_workflow_transitions_snapshot ON workflow_transitions(workflow_id, version);

			CREATE TABLE workflow_audits (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				action VARCHAR(20) NOT NULL CHECK (action IN ('CREATED', 'UPDATED', 'RESTORED')),
				actor VARCHAR(255) NOT NULL,
				version INTEGER NOT NULL,
				changed_fields JSON,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_audits_workflow_id ON workflow_audits(workflow_id, version);

			CREATE TABLE workflow_template_links (
				template_id VARCHAR(255) PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id)
			);

			CREATE INDEX idx_workflow_template_links_workflow_id ON workflow_template_links(workflow_id);

			CREATE TABLE workflow_task_assignments (
				task_id VARCHAR(255) PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id),
				version INTEGER NOT NULL,
				assigned_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_task_assignments_workflow_id ON workflow_task_assignments(workflow_id);
		`,
	}
}
