package migration

// getAllMigrations returns every known migration
func getAllMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_taxonomy_and_hours",
			Up: `
				-- Fixed epic category taxonomy; rows are seeded, never inferred
				CREATE TABLE epic_categories (
					name VARCHAR(100) PRIMARY KEY,
					display_order INTEGER NOT NULL UNIQUE
				);

				INSERT INTO epic_categories (name, display_order) VALUES
					('Project Oversight', 0),
					('UX', 1),
					('Design', 2),
					('FE Dev', 3),
					('BE Dev', 4);

				-- Raw hour observations from the tracking feed
				CREATE TABLE epic_hours (
					id SERIAL PRIMARY KEY,
					project_key VARCHAR(100) NOT NULL,
					epic_key VARCHAR(100) NOT NULL,
					epic_summary TEXT NOT NULL DEFAULT '',
					team VARCHAR(100) NOT NULL,
					month DATE NOT NULL,
					hours NUMERIC(10,2) NOT NULL CHECK (hours >= 0),
					created_at TIMESTAMP DEFAULT NOW(),
					updated_at TIMESTAMP DEFAULT NOW(),
					UNIQUE (project_key, epic_key, month, team)
				);

				CREATE INDEX idx_epic_hours_project ON epic_hours(project_key);
				CREATE INDEX idx_epic_hours_team ON epic_hours(team);
			`,
			Down: `
				DROP TABLE IF EXISTS epic_hours;
				DROP TABLE IF EXISTS epic_categories;
			`,
		},
		{
			Version: 2,
			Name:    "create_classifier_caches",
			Up: `
				-- Authoritative classifier cache, keyed by epic key
				CREATE TABLE epic_category_mappings (
					epic_key VARCHAR(100) PRIMARY KEY,
					category VARCHAR(100) NOT NULL REFERENCES epic_categories(name),
					created_at TIMESTAMP DEFAULT NOW(),
					updated_at TIMESTAMP DEFAULT NOW()
				);

				-- Summary-keyed cache with confidence and provenance
				CREATE TABLE epic_baseline_mappings (
					epic_summary TEXT PRIMARY KEY,
					baseline_category VARCHAR(100) NOT NULL REFERENCES epic_categories(name),
					confidence_score NUMERIC(4,3) NOT NULL CHECK (confidence_score >= 0 AND confidence_score <= 1),
					created_by VARCHAR(50) NOT NULL,
					created_at TIMESTAMP DEFAULT NOW(),
					updated_at TIMESTAMP DEFAULT NOW()
				);
			`,
			Down: `
				DROP TABLE IF EXISTS epic_baseline_mappings;
				DROP TABLE IF EXISTS epic_category_mappings;
			`,
		},
		{
			Version: 3,
			Name:    "create_baseline_tables",
			Up: `
				CREATE TABLE epic_baselines (
					epic_category VARCHAR(100) PRIMARY KEY REFERENCES epic_categories(name),
					median_hours NUMERIC(12,2) NOT NULL,
					mean_hours NUMERIC(12,2) NOT NULL,
					p75_hours NUMERIC(12,2) NOT NULL,
					p90_hours NUMERIC(12,2) NOT NULL,
					min_hours NUMERIC(12,2) NOT NULL,
					max_hours NUMERIC(12,2) NOT NULL,
					project_count INTEGER NOT NULL,
					occurrence_count INTEGER NOT NULL,
					coefficient_of_variation NUMERIC(10,4) NOT NULL,
					variance_level VARCHAR(10) NOT NULL CHECK (variance_level IN ('low','medium','high')),
					low_sample BOOLEAN NOT NULL DEFAULT FALSE,
					updated_at TIMESTAMP DEFAULT NOW()
				);

				CREATE TABLE epic_allocation_baselines (
					epic_category VARCHAR(100) PRIMARY KEY REFERENCES epic_categories(name),
					min_allocation_pct NUMERIC(6,2) NOT NULL,
					max_allocation_pct NUMERIC(6,2) NOT NULL,
					avg_allocation_pct NUMERIC(6,2) NOT NULL,
					std_dev NUMERIC(10,4) NOT NULL,
					sample_size INTEGER NOT NULL,
					updated_at TIMESTAMP DEFAULT NOW(),
					CHECK (min_allocation_pct <= avg_allocation_pct AND avg_allocation_pct <= max_allocation_pct)
				);

				CREATE TABLE temporal_pattern_baselines (
					timeline_start_pct INTEGER NOT NULL CHECK (timeline_start_pct >= 0),
					timeline_end_pct INTEGER NOT NULL CHECK (timeline_end_pct <= 100),
					team VARCHAR(100) NOT NULL,
					work_pct NUMERIC(6,2) NOT NULL,
					sample_size INTEGER NOT NULL,
					updated_at TIMESTAMP DEFAULT NOW(),
					PRIMARY KEY (timeline_start_pct, timeline_end_pct, team),
					CHECK (timeline_start_pct < timeline_end_pct)
				);
			`,
			Down: `
				DROP TABLE IF EXISTS temporal_pattern_baselines;
				DROP TABLE IF EXISTS epic_allocation_baselines;
				DROP TABLE IF EXISTS epic_baselines;
			`,
		},
		{
			Version: 4,
			Name:    "create_forecasts_and_budgets",
			Up: `
				-- Forecasts are immutable; superseding creates a new row
				CREATE TABLE epic_forecasts (
					id SERIAL PRIMARY KEY,
					project_key VARCHAR(100) NOT NULL,
					epic_name VARCHAR(255) NOT NULL,
					epic_description TEXT NOT NULL,
					category VARCHAR(100) NOT NULL REFERENCES epic_categories(name),
					confidence NUMERIC(4,3) NOT NULL,
					be_integrations BOOLEAN NOT NULL DEFAULT FALSE,
					custom_theme BOOLEAN NOT NULL DEFAULT FALSE,
					custom_designs BOOLEAN NOT NULL DEFAULT FALSE,
					ux_research BOOLEAN NOT NULL DEFAULT FALSE,
					estimated_months INTEGER NOT NULL CHECK (estimated_months > 0),
					teams_selected JSONB NOT NULL,
					forecast_data JSONB NOT NULL,
					total_hours NUMERIC(12,2) NOT NULL,
					flags JSONB NOT NULL DEFAULT '[]',
					created_by VARCHAR(100) NOT NULL DEFAULT '',
					created_at TIMESTAMP DEFAULT NOW()
				);

				CREATE INDEX idx_epic_forecasts_project ON epic_forecasts(project_key);

				CREATE TABLE epic_budgets (
					id SERIAL PRIMARY KEY,
					project_key VARCHAR(100) NOT NULL,
					epic_key VARCHAR(100) NOT NULL,
					epic_name VARCHAR(255) NOT NULL DEFAULT '',
					hours NUMERIC(12,2) NOT NULL CHECK (hours >= 0),
					is_placeholder BOOLEAN NOT NULL DEFAULT FALSE,
					imported_at TIMESTAMP,
					import_source VARCHAR(100),
					created_at TIMESTAMP DEFAULT NOW(),
					updated_at TIMESTAMP DEFAULT NOW(),
					UNIQUE (project_key, epic_key)
				);
			`,
			Down: `
				DROP TABLE IF EXISTS epic_budgets;
				DROP TABLE IF EXISTS epic_forecasts;
			`,
		},
		{
			Version: 5,
			Name:    "create_project_configs_and_locks",
			Up: `
				CREATE TABLE project_forecasting_configs (
					project_key VARCHAR(100) PRIMARY KEY,
					forecasting_start_date DATE NOT NULL,
					forecasting_end_date DATE NOT NULL,
					include_in_forecasting BOOLEAN NOT NULL DEFAULT TRUE,
					project_type VARCHAR(50) NOT NULL DEFAULT '',
					created_at TIMESTAMP DEFAULT NOW(),
					updated_at TIMESTAMP DEFAULT NOW(),
					CHECK (forecasting_start_date <= forecasting_end_date)
				);

				-- Named job locks; at most one worker per job name
				CREATE TABLE job_locks (
					job_name VARCHAR(100) PRIMARY KEY,
					owner VARCHAR(100) NOT NULL,
					acquired_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
			Down: `
				DROP TABLE IF EXISTS job_locks;
				DROP TABLE IF EXISTS project_forecasting_configs;
			`,
		},
	}
}
