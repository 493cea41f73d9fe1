package config_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/controller/cmd/config"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/urfave/cli/v2"
)

func TestMetadata(t *testing.T) {
	testCases := map[string]struct {
		args    []string
		meta    *model.MetadataConfig
		wantErr bool
	}{
		"run log is disabled": {
			args: []string{},
		},
		"dataset and table": {
			args: []string{"--meta-bq-dataset-id", "catalogsync", "--meta-bq-table-id", "runs"},
			meta: model.NewMetadataConfig("catalogsync", "runs"),
		},
		"missing dataset": {
			args:    []string{"--meta-bq-table-id", "runs"},
			wantErr: true,
		},
		"missing table": {
			args:    []string{"--meta-bq-dataset-id", "catalogsync"},
			wantErr: true,
		},
		"dataset with hyphen": {
			args:    []string{"--meta-bq-dataset-id", "catalog-sync", "--meta-bq-table-id", "runs"},
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var meta config.Metadata
			runFlags(t, meta.Flags(), tc.args, func(c *cli.Context) error {
				md, err := meta.Configure()
				if tc.wantErr {
					gt.True(t, errors.Is(err, types.ErrInvalidOption))
					return nil
				}
				gt.NoError(t, err)
				gt.Equal(t, md, tc.meta)
				return nil
			})
		})
	}
}

func TestMetadataClientWithoutProject(t *testing.T) {
	var meta config.Metadata
	runFlags(t, meta.Flags(), []string{"--meta-bq-dataset-id", "catalogsync", "--meta-bq-table-id", "runs"}, func(c *cli.Context) error {
		client, err := meta.NewClient(c.Context)
		gt.NoError(t, err)
		gt.True(t, client == nil)
		return nil
	})
}
