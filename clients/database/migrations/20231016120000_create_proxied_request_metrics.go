package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/kava-labs/evm-rpc-middleware/clients/database"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewCreateTable().
			Model((*database.ProxiedRequestMetric)(nil)).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewCreateIndex().
			Model((*database.ProxiedRequestMetric)(nil)).
			Index("proxied_request_metrics_request_time_idx").
			IfNotExists().
			Column("request_time").
			Exec(ctx)

		return err
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDropTable().
			Model((*database.ProxiedRequestMetric)(nil)).
			IfExists().
			Exec(ctx)

		return err
	})
}
