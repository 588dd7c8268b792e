package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create records table
			CREATE TABLE records (
				id UUID PRIMARY KEY,
				entity_type VARCHAR(50) NOT NULL,
				status VARCHAR(100) NOT NULL,
				department VARCHAR(255),
				creator_email VARCHAR(255) NOT NULL,
				version BIGINT NOT NULL DEFAULT 0,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_records_entity_type ON records(entity_type);
			CREATE INDEX idx_records_status ON records(status);
			CREATE INDEX idx_records_department ON records(department);
			CREATE INDEX idx_records_creator_email ON records(creator_email);
			CREATE INDEX idx_records_created_at ON records(created_at);

			-- Create inspections table
			CREATE TABLE inspections (
				id UUID PRIMARY KEY,
				original_proposal_id UUID NOT NULL,
				status VARCHAR(50) NOT NULL,
				version BIGINT NOT NULL DEFAULT 0,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			-- One follow-up inspection per source proposal
			CREATE UNIQUE INDEX idx_inspections_proposal ON inspections(original_proposal_id);
			CREATE INDEX idx_inspections_status ON inspections(status);
			CREATE INDEX idx_inspections_created_at ON inspections(created_at);

			-- Create role_config table (single row)
			CREATE TABLE role_config (
				id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
				document JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
	}
}
