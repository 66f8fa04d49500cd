package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE work_orders (
				id VARCHAR(255) PRIMARY KEY,
				product VARCHAR(255) NOT NULL,
				qty INT NOT NULL CHECK (qty > 0),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE operations (
				id VARCHAR(255) PRIMARY KEY,
				work_order_id VARCHAR(255) NOT NULL REFERENCES work_orders(id) ON DELETE CASCADE,
				op_index INT NOT NULL,
				machine_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				start_time TIMESTAMP WITH TIME ZONE NOT NULL,
				end_time TIMESTAMP WITH TIME ZONE NOT NULL,
				CHECK (end_time >= start_time),
				UNIQUE (work_order_id, op_index)
			);

			CREATE INDEX idx_operations_work_order_id ON operations(work_order_id);
			CREATE INDEX idx_operations_machine_start ON operations(machine_id, start_time);
		`,
		2: `
			-- Commit sequence per machine, bumped on every change to its operation set
			CREATE TABLE machine_versions (
				machine_id VARCHAR(255) PRIMARY KEY,
				version BIGINT NOT NULL DEFAULT 0
			);
		`,
	}
}
