// Package authcmder provides the auth command for storing the identity used
// with the chat backend.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/murmur/pkg/cliui"
	"github.com/papercomputeco/murmur/pkg/dotdir"
	"github.com/papercomputeco/murmur/pkg/utils"
)

const authLongDesc string = `Manage the identity sent with every chat request.

Sign-in happens through the phone verification flow of the chat service. Store
the resulting phone number and access token with "murmur auth login"; they are
kept in auth.json in the .murmur/ directory and sent as the "phone" field and
bearer token of every request.

Examples:
  murmur auth login --phone +15551234567 --token eyJhbGci...
  echo $TOKEN | murmur auth login --phone +15551234567
  murmur auth status
  murmur auth logout`

const authShortDesc string = "Manage the chat identity"

func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
	}

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func newLoginCmd() *cobra.Command {
	var phone, token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a phone identity and access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			if !cmd.Flags().Changed("token") {
				var err error
				token, err = readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}
			return runLogin(cmd.OutOrStdout(), phone, token, configDir)
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "Verified phone number")
	cmd.Flags().StringVar(&token, "token", "", "Access token from the verification flow (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			if err := dotdir.NewManager().ClearAuthState(configDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Signed out.\n\n", cliui.SuccessMark)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runStatus(cmd.OutOrStdout(), configDir)
		},
	}
}

func runLogin(w io.Writer, phone, token, configDir string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return errors.New("phone cannot be empty")
	}

	state := &dotdir.AuthState{
		PhoneNumber: phone,
		AccessToken: strings.TrimSpace(token),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := dotdir.NewManager().SaveAuthState(state, configDir); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Signed in as %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(phone))
	return nil
}

func runStatus(w io.Writer, configDir string) error {
	state, err := dotdir.NewManager().LoadAuthState(configDir)
	if err != nil {
		return err
	}

	if state == nil {
		fmt.Fprintf(w, "\n  %s Not signed in. Requests are anonymous.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(w, "  Use 'murmur auth login --phone <number>' to store an identity.\n\n")
		return nil
	}

	token := cliui.DimStyle.Render("<none>")
	if state.AccessToken != "" {
		token = cliui.HashStyle.Render(utils.Truncate(state.AccessToken, 12))
	}

	fmt.Fprintf(w, "\n  %s  %s\n", cliui.KeyStyle.Render("Phone:  "), cliui.NameStyle.Render(state.PhoneNumber))
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Token:  "), token)
	fmt.Fprintf(w, "  %s  %s\n\n", cliui.KeyStyle.Render("Updated:"), cliui.DimStyle.Render(state.UpdatedAt.Local().Format(time.RFC1123)))
	return nil
}

// readToken reads the token from in. A terminal gets a hidden prompt, any
// other input contributes its first line.
func readToken(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Access token (leave empty for none): ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", nil
}
