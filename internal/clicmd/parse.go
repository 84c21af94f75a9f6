package clicmd

import (
	"errors"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// parseArgs parses args into opts, matching the teacher's
// BaseCommand.ParseArgsWithHelp: a bare --help prints usage and reports
// back that it did so rather than erroring.
func parseArgs(opts any, args []string) (remaining []string, helpShown bool, err error) {
	parser := flags.NewParser(opts, flags.Default)
	remaining, err = parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("parsing arguments: %w", err)
	}
	return remaining, false, nil
}
