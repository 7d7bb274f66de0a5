package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	var blockSize int

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate COURTSCHED_SESSION_HASH_KEY and COURTSCHED_SESSION_BLOCK_KEY values (base64)",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch blockSize {
			case 16, 24, 32:
			default:
				return fmt.Errorf("block key must be 16, 24 or 32 bytes, got %d", blockSize)
			}

			hash := make([]byte, 32)
			block := make([]byte, blockSize)
			if _, err := rand.Read(hash); err != nil {
				return err
			}
			if _, err := rand.Read(block); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "export COURTSCHED_SESSION_HASH_KEY=%s\n", base64.StdEncoding.EncodeToString(hash))
			fmt.Fprintf(os.Stdout, "export COURTSCHED_SESSION_BLOCK_KEY=%s\n", base64.StdEncoding.EncodeToString(block))
			return nil
		},
	}

	cmd.Flags().IntVar(&blockSize, "block-size", 32, "block key size in bytes (16, 24 or 32 selects AES-128/192/256)")
	return cmd
}
