package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/addityasingh/glaceon/pkg/credentials"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the archive",
	Long:  `Sign in to the archive API and store the access token used by auto-upload`,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Long:  `Remove the stored access token and account; auto-upload will wait for a new login`,
	RunE:  runLogout,
}

var loginUsername string

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (prompted when empty)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	out := cmd.OutOrStdout()
	username := loginUsername
	if username == "" {
		username, err = promptLine(bufio.NewReader(cmd.InOrStdin()), "Username: ", out)
		if err != nil {
			return fmt.Errorf("reading username: %w", err)
		}
	}
	if username == "" {
		return errors.New("username cannot be empty")
	}

	password, err := promptPassword(out)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	client, err := newAPIClient(cfg, logger)
	if err != nil {
		return err
	}
	result, err := client.Login(cmd.Context(), username, string(password))
	if err != nil {
		return err
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	account := credentials.Account{Username: username}
	if result.User != nil {
		account = credentials.Account{
			UserID:   result.User.UserID,
			Username: result.User.Username,
			Email:    result.User.Email,
		}
	}
	if err := st.credentials.Save(result.Token, account); err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Signed in as %s\n", account.Username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.credentials.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}

// promptLine prints prompt to w and reads one trimmed line from reader.
func promptLine(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
