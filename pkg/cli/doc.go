/*
Package cli provides helpers shared by the policyguard commands.

Output Formatting:

Commands accept --format text|json|csv. Results that implement Table
render as aligned columns or CSV; anything else is printed with %v or
encoded as JSON:

	format, err := cli.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), policyTable(policies))

Errors:

ConfigError and CommandError describe failures. ExitError carries a
non-failure exit status, such as ExitBlocked from "policyguard evaluate"
when the verdict is BLOCK.

Signal Handling:

	ctx, cancel := cli.SetupSignalHandler(context.Background())
	defer cancel()
*/
package cli
