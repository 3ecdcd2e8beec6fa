package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/addityasingh/glaceon/pkg/admin"
	"github.com/spf13/cobra"
)

var ctlCmd = &cobra.Command{
	Use:       "ctl <start|stop|restart|status>",
	Short:     "Control a running daemon",
	Long:      `Send a lifecycle command to a running daemon over its admin channel`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"start", "stop", "restart", "status"},
	RunE:      runCtl,
}

var ctlAddr string

func init() {
	rootCmd.AddCommand(ctlCmd)

	ctlCmd.Flags().StringVarP(&ctlAddr, "addr", "a", "", "Admin address (default 127.0.0.1:<admin.port>)")
}

func runCtl(cmd *cobra.Command, args []string) error {
	addr := ctlAddr
	if addr == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr = fmt.Sprintf("127.0.0.1:%d", cfg.Admin.Port)
	}

	command := strings.ToUpper(args[0])
	response, err := admin.SendCommand(addr, command)
	if err != nil {
		return fmt.Errorf("%s failed: %w", args[0], err)
	}

	if command != admin.StatusCmd {
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: %s\n", args[0], response)
		return nil
	}
	return printStatus(cmd.OutOrStdout(), response)
}

func printStatus(w io.Writer, response string) error {
	st, err := admin.ParseStatus(response)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "state:      %s\n", st.State)
	fmt.Fprintf(w, "known:      %d files\n", st.LedgerSize)
	fmt.Fprintf(w, "in flight:  %d\n", st.InFlight)
	fmt.Fprintf(w, "folders:    %d (%d subscribed)\n", len(st.Folders), len(st.Subscribed))
	for _, f := range st.Folders {
		fmt.Fprintf(w, "  %s\n", f)
	}
	return nil
}
