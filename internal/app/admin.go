package app

import (
	"context"
	"errors"

	"github.com/patric-chuzhbe/flatapi/internal/adminrpc"
	"github.com/patric-chuzhbe/flatapi/internal/backup"
	"github.com/patric-chuzhbe/flatapi/internal/config"
	"github.com/patric-chuzhbe/flatapi/internal/console"
	"github.com/patric-chuzhbe/flatapi/internal/pizza"
)

type consoleSource interface {
	List(ctx context.Context, collection string) ([]string, error)
	Read(ctx context.Context, collection, id string, dst any) error
	Collections(ctx context.Context) ([]string, error)
	Close() error
}

// OpenConsole builds the admin console. It reads through the admin gRPC
// endpoint when remoteAddr is set and from the configured store otherwise.
// The returned function releases the data source.
func OpenConsole(ctx context.Context, cfg *config.Config, remoteAddr, adminKey string) (*console.Console, func() error, error) {
	var (
		src consoleSource
		err error
	)
	if remoteAddr != "" {
		src, err = adminrpc.Dial(remoteAddr, adminKey)
	} else {
		src, err = OpenStore(ctx, cfg)
	}
	if err != nil {
		return nil, nil, err
	}

	var options []console.InitOption

	if cfg.MenuFile != "" {
		menu, err := pizza.LoadMenu(cfg.MenuFile)
		if err != nil {
			_ = src.Close()
			return nil, nil, err
		}
		options = append(options, console.WithMenu(menu))
	}

	uploader, err := backup.NewS3(ctx, src, backup.Config{
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Prefix:       cfg.S3Prefix,
	})
	switch {
	case err == nil:
		options = append(options, console.WithBackup(uploader))
	case !errors.Is(err, backup.ErrNotConfigured):
		_ = src.Close()
		return nil, nil, err
	}

	return console.New(src, options...), src.Close, nil
}
