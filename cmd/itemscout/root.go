package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"itemscout/internal/client"
)

const defaultAPIURL = "http://localhost:5000"

var errNotSignedIn = errors.New("not signed in, run `itemscout login` first")

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	v       *viper.Viper
	client  *client.Client
	session *client.Session
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:          "itemscout",
		Short:        "Catalogue physical items with photos and locations",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().String("api-url", defaultAPIURL, "ItemScout server URL")
	root.PersistentFlags().String("session-file", "", "where the signed-in session is kept (default ~/.itemscout/session.json)")

	a.v.SetEnvPrefix("ITEMSCOUT")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlag("api_url", root.PersistentFlags().Lookup("api-url"))
	_ = a.v.BindPFlag("session_file", root.PersistentFlags().Lookup("session-file"))

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.itemsCmd(),
		a.usersCmd(),
	)
	return root
}

func (a *app) init() error {
	c, err := client.New(a.v.GetString("api_url"))
	if err != nil {
		return err
	}

	path := a.v.GetString("session_file")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locate home directory: %w", err)
		}
		path = filepath.Join(home, ".itemscout", "session.json")
	}

	a.client = c
	a.session = client.NewSession(c, client.NewFileStore(path))
	if _, err := a.session.Restore(); err != nil {
		return err
	}
	return nil
}

func (a *app) requireSession() (client.AuthUser, error) {
	user, ok := a.session.CurrentUser()
	if !ok {
		return client.AuthUser{}, errNotSignedIn
	}
	return user, nil
}
