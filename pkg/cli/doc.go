/*
Package cli holds helpers shared by the limitr commands: output formatting,
progress reporting for benchmarks, signal handling and error types that map
to process exit codes.

Output formatting:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, statuses)

Values implementing Table render as aligned columns in text mode and as rows
in CSV mode.

Signal handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
	return srv.Start(ctx) // returns on SIGINT or SIGTERM
*/
package cli
