package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/bsncloud/pkg/bsn"
)

// devicesCommand returns the 'devices' subcommand.
func devicesCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "Inspect and control players",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List devices of the network",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "description",
						Usage: "only devices whose description contains this text",
					},
				},
				Action: r.devicesListAction,
			},
			{
				Name:      "info",
				Usage:     "Show player information via remote DWS",
				ArgsUsage: "<serial> [serial...]",
				Action:    r.devicesInfoAction,
			},
			{
				Name:      "reboot",
				Usage:     "Reboot a player",
				ArgsUsage: "<serial>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "crash_report, factory_reset or disable_autorun",
					},
				},
				Action: r.devicesRebootAction,
			},
			{
				Name:      "snapshot",
				Usage:     "Take a screenshot on a player",
				ArgsUsage: "<serial>",
				Action:    r.devicesSnapshotAction,
			},
		},
	}
}

func (r *runner) devicesListAction(ctx context.Context, cmd *cli.Command) error {
	devices, err := r.app.Client.GetDevices(ctx, cmd.String("description"))
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, devices)
}

func (r *runner) devicesInfoAction(ctx context.Context, cmd *cli.Command) error {
	serials := cmd.Args().Slice()
	if len(serials) == 0 {
		return fmt.Errorf("serial argument is required")
	}

	if len(serials) == 1 {
		info, err := r.app.Client.GetDeviceInfo(ctx, serials[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.Root().Writer, info)
	}

	infos, err := r.app.DeviceInfo(ctx, serials)
	if err != nil {
		return err
	}
	out, err := json.Marshal(infos)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, out)
}

func (r *runner) devicesRebootAction(ctx context.Context, cmd *cli.Command) error {
	serial, err := requireArg(cmd, "serial")
	if err != nil {
		return err
	}
	res, err := r.app.Client.RebootDevice(ctx, serial, bsn.RebootMode(cmd.String("mode")))
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, res)
}

func (r *runner) devicesSnapshotAction(ctx context.Context, cmd *cli.Command) error {
	serial, err := requireArg(cmd, "serial")
	if err != nil {
		return err
	}
	res, err := r.app.Client.TakeSnapshot(ctx, serial)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, res)
}
