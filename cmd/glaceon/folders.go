package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/addityasingh/glaceon/pkg/policy"
	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Manage monitored folders",
	Long:  `List, add and remove the folders watched for new files. The daemon holds the
state database lock while running, so stop it first; changes apply when it
next starts`,
}

var foldersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show monitored folders",
	Long:  `Show the monitored folders as a tree with the number of files each holds`,
	Args:  cobra.NoArgs,
	RunE:  runFoldersList,
}

var foldersAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a monitored folder",
	Long:  `Add a folder to the monitored set. Relative paths are made absolute`,
	Args:  cobra.ExactArgs(1),
	RunE:  runFoldersAdd,
}

var foldersRemoveCmd = &cobra.Command{
	Use:   "remove <path>",
	Short: "Remove a monitored folder",
	Long:  `Remove a folder from the monitored set`,
	Args:  cobra.ExactArgs(1),
	RunE:  runFoldersRemove,
}

func init() {
	rootCmd.AddCommand(foldersCmd)
	foldersCmd.AddCommand(foldersListCmd)
	foldersCmd.AddCommand(foldersAddCmd)
	foldersCmd.AddCommand(foldersRemoveCmd)
}

func runFoldersList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	pol, err := st.policies.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderFolders(pol))
	return nil
}

// renderFolders draws the monitored set as a tree.
func renderFolders(pol policy.Policy) string {
	label := "Monitored folders"
	if !pol.Enabled {
		label += " (auto-upload disabled)"
	}
	tree := gotree.New(label)

	for _, folder := range pol.MonitoredFolders {
		node := tree.Add(folder)
		entries, err := os.ReadDir(folder)
		if err != nil {
			node.Add("(missing)")
			continue
		}

		files := 0
		for _, e := range entries {
			if !e.IsDir() {
				files++
			}
		}
		node.Add(fmt.Sprintf("%d files", files))
	}
	return tree.Print()
}

func runFoldersAdd(cmd *cobra.Command, args []string) error {
	return updateFolder(cmd, args[0], true)
}

func runFoldersRemove(cmd *cobra.Command, args []string) error {
	return updateFolder(cmd, args[0], false)
}

func updateFolder(cmd *cobra.Command, folder string, add bool) error {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", folder, err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if add {
		if err := st.policies.AddFolder(cmd.Context(), abs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "➕ Monitoring %s\n", abs)
		return nil
	}

	if err := st.policies.RemoveFolder(cmd.Context(), abs); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "➖ No longer monitoring %s\n", abs)
	return nil
}
