package approval

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/approval/internal/env"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
	ifs "github.com/viant/approval/service/dao/instance/fs"
	imemory "github.com/viant/approval/service/dao/instance/memory"
	imongo "github.com/viant/approval/service/dao/instance/mongo"
	ipostgres "github.com/viant/approval/service/dao/instance/postgres"
)

type closer func(ctx context.Context) error

// openStore opens the instance store named by config.Driver.
func openStore(ctx context.Context, config StoreConfig, fs afs.Service, logger logrus.FieldLogger) (dao.Service[string, instance.WorkflowInstance], closer, error) {
	switch config.Driver {
	case "", DriverMemory:
		return imemory.New(), nil, nil
	case DriverFS:
		store, err := ifs.New(ctx, env.Expand(config.URL), ifs.WithFS(fs), ifs.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case DriverMongo:
		store, client, err := imongo.Connect(ctx, env.Expand(config.URL), config.Database, config.Collection)
		if err != nil {
			return nil, nil, err
		}
		if err = store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, fmt.Errorf("failed to create instance indexes: %w", err)
		}
		return store, client.Disconnect, nil
	case DriverPostgres:
		store, pool, err := ipostgres.Connect(ctx, env.Expand(config.DSN))
		if err != nil {
			return nil, nil, err
		}
		if err = store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create instance schema: %w", err)
		}
		return store, func(context.Context) error { pool.Close(); return nil }, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver: %v", config.Driver)
}
