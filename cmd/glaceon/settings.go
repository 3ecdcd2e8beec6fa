package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/addityasingh/glaceon/pkg/policy"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change auto-upload settings",
	Long:  `Show or change the auto-upload settings stored in the state database`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings",
	Long:  `Show the current auto-upload settings`,
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one auto-upload setting. Keys:
  enabled        true|false
  wifi-only      true|false
  category       category label attached to uploads
  size-limit-mb  largest file to upload, in MiB
  extensions     comma-separated allow-list, e.g. jpg,png,pdf`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
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
	printSettings(cmd.OutOrStdout(), pol)
	return nil
}

func printSettings(w io.Writer, pol policy.Policy) {
	fmt.Fprintf(w, "enabled:        %t\n", pol.Enabled)
	fmt.Fprintf(w, "wifi-only:      %t\n", pol.WifiOnly)
	fmt.Fprintf(w, "category:       %s\n", pol.Category)
	fmt.Fprintf(w, "size-limit-mb:  %d\n", pol.SizeLimitBytes>>20)
	fmt.Fprintf(w, "extensions:     %s\n", strings.Join(pol.Extensions(), ","))
	fmt.Fprintf(w, "folders:        %d\n", len(pol.MonitoredFolders))
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := applySetting(cmd.Context(), st.policies, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
	return nil
}

// applySetting parses value for key and writes it to store.
func applySetting(ctx context.Context, store policy.Store, key, value string) error {
	switch key {
	case "enabled", "wifi-only":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		if key == "enabled" {
			return store.SetEnabled(ctx, b)
		}
		return store.SetWifiOnly(ctx, b)

	case "category":
		return store.SetCategory(ctx, strings.TrimSpace(value))

	case "size-limit-mb":
		mb, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		if mb <= 0 || mb > 1<<20 {
			return fmt.Errorf("%s out of range: %d", key, mb)
		}
		return store.SetSizeLimit(ctx, mb<<20)

	case "extensions":
		var exts []string
		for _, ext := range strings.Split(value, ",") {
			if ext = policy.NormalizeExtension(ext); ext != "" {
				exts = append(exts, ext)
			}
		}
		if len(exts) == 0 {
			return fmt.Errorf("%s cannot be empty", key)
		}
		return store.SetAllowedExtensions(ctx, exts)
	}

	return fmt.Errorf("unknown setting %q", key)
}
