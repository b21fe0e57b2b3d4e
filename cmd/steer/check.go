package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Validate flow definition files",
		ArgsUsage: "<flow.yaml>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				return errors.New("check: at least one flow file is required")
			}
			var errs []error
			for _, p := range paths {
				fe, err := loadFlow(p)
				if err != nil {
					errs = append(errs, err)
					_, _ = fmt.Fprintf(os.Stdout, "FAIL %s\n", p)
					continue
				}
				_, _ = fmt.Fprintf(os.Stdout, "ok   %s (%s)\n", p, fe.Name())
			}
			return errors.Join(errs...)
		},
	}
}
