package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/addityasingh/glaceon/pkg/credentials"
	"github.com/addityasingh/glaceon/pkg/gateway"
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Browse the archive",
	Long:  `List and delete files stored in the archive API`,
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived files",
	Long:  `List archived files, newest page first`,
	Args:  cobra.NoArgs,
	RunE:  runArchiveList,
}

var archiveDeleteCmd = &cobra.Command{
	Use:   "delete <archive-id>",
	Short: "Delete an archived file",
	Long:  `Delete an archived file by its archive ID`,
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveDelete,
}

var (
	archiveLimit        int
	archiveContinuation string
)

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveDeleteCmd)

	archiveListCmd.Flags().IntVarP(&archiveLimit, "limit", "n", 50, "Maximum number of entries")
	archiveListCmd.Flags().StringVar(&archiveContinuation, "continuation", "", "Continuation token from a previous page")
}

// archiveSession returns an API client and the stored token.
func archiveSession(cmd *cobra.Command) (*gateway.Client, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}

	st, err := openStores(cfg)
	if err != nil {
		return nil, "", err
	}
	token, ok := credentials.Chain{credentials.Env{}, st.credentials}.Token(cmd.Context())
	st.Close()
	if !ok {
		return nil, "", errors.New("not signed in; run 'glaceon login'")
	}

	client, err := newAPIClient(cfg, newLogger(cfg.Logging))
	if err != nil {
		return nil, "", err
	}
	return client, token, nil
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	client, token, err := archiveSession(cmd)
	if err != nil {
		return err
	}

	result, err := client.List(cmd.Context(), token, archiveLimit, archiveContinuation)
	if err != nil {
		return err
	}
	return printArchives(cmd.OutOrStdout(), result)
}

func printArchives(w io.Writer, result *gateway.ListResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tUPLOADED\tSTATUS")
	for _, a := range result.Archives {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", a.ArchiveID, a.FileName, a.FileSize, a.UploadTimestamp, a.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if result.HasMore {
		fmt.Fprintf(w, "\nMore results: --continuation %s\n", result.ContinuationToken)
	}
	return nil
}

func runArchiveDelete(cmd *cobra.Command, args []string) error {
	client, token, err := archiveSession(cmd)
	if err != nil {
		return err
	}

	if err := client.Delete(cmd.Context(), token, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "🗑️ Deleted %s\n", args[0])
	return nil
}
