package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/bsncloud/pkg/bsn"
)

// provisioningCommand returns the 'provisioning' subcommand.
func provisioningCommand(r *runner) *cli.Command {
	refFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "record id"},
			&cli.StringFlag{Name: "serial", Usage: "player serial number"},
		}
	}

	return &cli.Command{
		Name:  "provisioning",
		Usage: "Manage B-Deploy provisioning records",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List provisioning records of the network",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Usage: "page number", Value: 1},
					&cli.IntFlag{Name: "page-size", Usage: "records per page", Value: 100},
					&cli.BoolFlag{Name: "desc", Usage: "sort by serial number, descending"},
				},
				Action: r.provisioningListAction,
			},
			{
				Name:   "get",
				Usage:  "Show one provisioning record",
				Flags:  refFlags(),
				Action: r.provisioningGetAction,
			},
			{
				Name:  "delete",
				Usage: "Delete provisioning records",
				Flags: append(refFlags(), &cli.StringSliceFlag{
					Name:  "ids",
					Usage: "delete several records by id",
				}),
				Action: r.provisioningDeleteAction,
			},
		},
	}
}

func (r *runner) provisioningListAction(ctx context.Context, cmd *cli.Command) error {
	res, err := r.app.Client.ListProvisioningRecords(ctx, bsn.RecordQuery{
		SortDescending: cmd.Bool("desc"),
		PageNumber:     int(cmd.Int("page")),
		PageSize:       int(cmd.Int("page-size")),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, res)
}

func (r *runner) provisioningGetAction(ctx context.Context, cmd *cli.Command) error {
	res, err := r.app.Client.GetProvisioningRecord(ctx, bsn.RecordRef{
		ID:     cmd.String("id"),
		Serial: cmd.String("serial"),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, res)
}

func (r *runner) provisioningDeleteAction(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.StringSlice("ids")
	if len(ids) > 0 && (cmd.IsSet("id") || cmd.IsSet("serial")) {
		return fmt.Errorf("--ids cannot be combined with --id or --serial")
	}

	var (
		res []byte
		err error
	)
	if cmd.IsSet("ids") {
		res, err = r.app.Client.DeleteProvisioningRecords(ctx, ids)
	} else {
		res, err = r.app.Client.DeleteProvisioningRecord(ctx, bsn.RecordRef{
			ID:     cmd.String("id"),
			Serial: cmd.String("serial"),
		})
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, res)
}
