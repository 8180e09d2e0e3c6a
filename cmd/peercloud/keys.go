package main

import (
	"encoding/hex"
	"fmt"

	"github.com/peercloud/peercloud/keystore"
	"github.com/spf13/cobra"
)

var scheme string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "manage the keys authenticating clouds",
}

var keysGenCmd = &cobra.Command{
	Use:   "gen <name>",
	Short: "generate a key pair",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, s *keystore.Store, args []string) error {
		sk, err := s.Generate(args[0], keystore.Scheme(scheme), nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], sk.PublicKey())
		return nil
	}),
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "list the stored keys",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, s *keystore.Store, args []string) error {
		names, err := s.Names()
		if err != nil {
			return err
		}
		for _, name := range names {
			sk, err := s.Load(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, sk.PublicKey())
		}
		return nil
	}),
}

var keysExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "print a key so it can be imported on another host",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, s *keystore.Store, args []string) error {
		sch, secret, err := s.Export(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", sch, hex.EncodeToString(secret))
		return nil
	}),
}

var keysImportCmd = &cobra.Command{
	Use:   "import <name> <scheme> <hex>",
	Short: "store a key exported on another host",
	Args:  cobra.ExactArgs(3),
	RunE: withStore(func(cmd *cobra.Command, s *keystore.Store, args []string) error {
		secret, err := hex.DecodeString(args[2])
		if err != nil {
			return err
		}
		return s.Import(args[0], keystore.Scheme(args[1]), secret)
	}),
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "remove a key",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, s *keystore.Store, args []string) error {
		return s.Delete(args[0])
	}),
}

func init() {
	keysGenCmd.Flags().StringVarP(&scheme, "scheme", "s", string(keystore.Ed25519), "signature scheme: rsa, ed25519 or bn256")
	keysCmd.AddCommand(keysGenCmd, keysListCmd, keysExportCmd, keysImportCmd, keysDeleteCmd)
}

// withStore opens the key store of the config for the duration of the
// command.
func withStore(f func(*cobra.Command, *keystore.Store, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := keystore.Open(c.KeyStore)
		if err != nil {
			return err
		}
		defer s.Close()
		return f(cmd, s, args)
	}
}
