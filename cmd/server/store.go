package main

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/docserve/internal/cfg"
	"github.com/keithlinneman/docserve/internal/document"
	"github.com/keithlinneman/docserve/internal/log"
	"github.com/keithlinneman/docserve/internal/xerrors"
)

// openStore builds the configured backend. The returned name labels metrics and spans.
func openStore(ctx context.Context, L log.Logger, conf cfg.App) (document.Store, string, error) {
	switch conf.ContentBackend {
	case cfg.BackendS3:
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, "", xerrors.Wrap(err, "load AWS config")
		}

		prefix := conf.ContentS3Prefix
		if conf.ContentSSMParam != "" {
			prefix, err = document.ResolveS3Prefix(ctx, ssm.NewFromConfig(awsCfg), conf.ContentSSMParam, prefix)
			if err != nil {
				return nil, "", err
			}
			L.Info(ctx, "resolved content release from SSM",
				"content_ssm_param", conf.ContentSSMParam,
				"content_s3_prefix", prefix,
			)
		}

		store, err := document.NewS3Store(document.S3Options{
			Client: s3.NewFromConfig(awsCfg),
			Bucket: conf.ContentS3Bucket,
			Prefix: prefix,
		})
		if err != nil {
			return nil, "", err
		}
		return store, cfg.BackendS3, nil

	default:
		store, err := document.NewFileStore(conf.ContentDir)
		if err != nil {
			return nil, "", err
		}
		return store, cfg.BackendDir, nil
	}
}
