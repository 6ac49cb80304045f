package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the jobrun sqlite store.
var Migrations = migrate.NewGroup("jobrun")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_instances_table",
			Version: "20260301120000",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS jobrun_instances (
						id              TEXT PRIMARY KEY,
						job_name        TEXT NOT NULL,
						descriptor      TEXT NOT NULL,
						status          TEXT NOT NULL DEFAULT 'pending',
						scheduled_at    INTEGER NOT NULL,
						started_at      INTEGER,
						completed_at    INTEGER,
						duration        INTEGER,
						attempt         INTEGER NOT NULL DEFAULT 0,
						retry_count     INTEGER NOT NULL DEFAULT 0,
						error_message   TEXT NOT NULL DEFAULT '',
						execution_node  TEXT NOT NULL DEFAULT '',
						trace_id        TEXT NOT NULL DEFAULT '',
						updated_at      INTEGER NOT NULL
					)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE INDEX IF NOT EXISTS idx_jobrun_instances_scheduled
						ON jobrun_instances (scheduled_at DESC, id DESC)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE INDEX IF NOT EXISTS idx_jobrun_instances_job_status
						ON jobrun_instances (job_name, status)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE INDEX IF NOT EXISTS idx_jobrun_instances_completed
						ON jobrun_instances (completed_at)`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS jobrun_instances`)
				return err
			},
		},
	)
}
