package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contact-verifier/internal/model"
)

var verifyAgain bool

var verifyCmd = &cobra.Command{
	Use:   "verify <contact-id>",
	Short: "Verify a single contact and print the verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		contactID := args[0]

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var verdict *model.Verdict
		if verifyAgain {
			verdict, err = env.Verifier.Reverify(ctx, contactID)
		} else {
			contact, getErr := env.Store.GetContact(ctx, contactID)
			if getErr != nil {
				return eris.Wrapf(getErr, "get contact %s", contactID)
			}
			if contact.Status.Terminal() {
				return eris.Errorf("contact %s already %s, use --again to re-verify", contactID, contact.Status)
			}
			verdict, err = env.Verifier.VerifyContact(ctx, contact)
		}
		if err != nil {
			return eris.Wrapf(err, "verify contact %s", contactID)
		}

		out, err := json.MarshalIndent(verdict, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal verdict")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyAgain, "again", false, "reset a terminal contact and verify it again")
	rootCmd.AddCommand(verifyCmd)
}
