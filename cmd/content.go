package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inovacc/pagewright/internal/encoding"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Back up, restore and inspect stored content",
}

var contentExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the raw content tree as JSON",
	Long: `Write the whole content tree, exactly as stored, to a JSON file or to
stdout. The file can be restored with 'pagewright content import'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runContentExport,
}

var contentYes bool

var contentImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the content tree with a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE:  runContentImport,
}

var contentShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the normalized content object served to the live site",
	Args:  cobra.NoArgs,
	RunE:  runContentShow,
}

func init() {
	rootCmd.AddCommand(contentCmd)
	contentCmd.AddCommand(contentExportCmd, contentImportCmd, contentShowCmd)

	contentImportCmd.Flags().BoolVarP(&contentYes, "yes", "y", false, "Skip confirmation prompt")
}

func runContentExport(cmd *cobra.Command, args []string) error {
	svc, tree, err := openContent(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	defer func() { _ = tree.Close() }()

	_, raw, err := svc.Export(cmd.Context())
	if err != nil {
		return err
	}

	if raw == nil {
		raw = map[string]any{}
	}

	if len(args) == 0 {
		data, err := encoding.ToJSONIndent(raw)
		if err != nil {
			return err
		}

		_, err = os.Stdout.Write(data)

		return err
	}

	if err := encoding.SaveJSON(args[0], raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[0], err)
	}

	printf("Content exported to %s\n", args[0])

	return nil
}

func runContentImport(cmd *cobra.Command, args []string) error {
	raw, err := encoding.LoadJSON[map[string]any](args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	if raw == nil {
		return fmt.Errorf("%s does not exist", args[0])
	}

	if !contentYes && !promptConfirm("Replace all stored content? [y/N]: ") {
		printf("Cancelled.\n")

		return nil
	}

	svc, tree, err := openContent(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	defer func() { _ = tree.Close() }()

	if err := svc.Import(cmd.Context(), *raw); err != nil {
		return err
	}

	printf("Content imported from %s\n", args[0])

	return nil
}

func runContentShow(cmd *cobra.Command, _ []string) error {
	svc, tree, err := openContent(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	defer func() { _ = tree.Close() }()

	snap, err := svc.GetAllContent(cmd.Context())
	if err != nil {
		return err
	}

	return printJSON(snap)
}

// promptConfirm asks the user for confirmation and returns true if they confirm
func promptConfirm(prompt string) bool {
	printf("%s", prompt)

	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.TrimSpace(line)

	return line == "y" || line == "Y"
}
