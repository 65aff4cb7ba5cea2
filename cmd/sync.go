package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/marcus/lift/internal/coordinator"
	"github.com/marcus/lift/internal/crypto"
	"github.com/marcus/lift/internal/output"
	"github.com/marcus/lift/internal/queue"
	"github.com/marcus/lift/internal/remote"
	"github.com/marcus/lift/internal/store"
	"github.com/marcus/lift/internal/syncconfig"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync local data with the remote server",
	RunE: func(cmd *cobra.Command, args []string) error {
		pushOnly, _ := cmd.Flags().GetBool("push")
		pullOnly, _ := cmd.Flags().GetBool("pull")
		statusOnly, _ := cmd.Flags().GetBool("status")
		watch, _ := cmd.Flags().GetBool("watch")

		if !syncconfig.IsAuthenticated() {
			output.Error("not logged in (run: lift auth login)")
			return fmt.Errorf("not authenticated")
		}

		s, err := store.Open(getBaseDir())
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer s.Close()

		coord, err := buildCoordinator(s)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if statusOnly {
			return printSyncStatus(coord)
		}

		if watch {
			interval := syncconfig.GetAutoSyncInterval()
			worker := coordinator.NewWorker(coord, interval)
			output.Info("Syncing every %s (ctrl-c to stop)", interval)
			worker.Kick()
			return worker.Run(cmd.Context())
		}

		ctx := cmd.Context()
		switch {
		case pushOnly:
			err = coord.Push(ctx)
		case pullOnly:
			err = coord.Pull(ctx)
		default:
			err = coord.Sync(ctx)
		}
		if err != nil {
			output.Error("sync: %v", err)
			return err
		}

		return printSyncStatus(coord)
	},
}

// buildCoordinator wires a coordinator from stored credentials and, when
// encryption is enabled, the payload cipher.
func buildCoordinator(s *store.Store) (*coordinator.Coordinator, error) {
	deviceID, err := syncconfig.GetDeviceID()
	if err != nil {
		return nil, fmt.Errorf("get device id: %w", err)
	}

	client := remote.New(syncconfig.GetServerURL(), syncconfig.GetAPIKey(), deviceID)

	cipher, err := loadCipher()
	if err != nil {
		return nil, err
	}
	client.Cipher = cipher

	q := queue.New(s, deviceID)
	return coordinator.New(s, client, q, deviceID), nil
}

// loadCipher returns the payload cipher when encryption is enabled, nil when
// it is not.
func loadCipher() (remote.Cipher, error) {
	km, err := syncconfig.LoadKeyMaterial()
	if err != nil {
		return nil, fmt.Errorf("load key material: %w", err)
	}
	if km == nil {
		return nil, nil
	}

	dek, err := unlockDEK(km)
	if err != nil {
		return nil, err
	}
	return crypto.NewPayloadCipher(dek)
}

// unlockDEK recovers the data encryption key from stored key material,
// asking for the passphrase when LIFT_PASSPHRASE is unset.
func unlockDEK(km *syncconfig.KeyMaterial) ([]byte, error) {
	passphrase := os.Getenv("LIFT_PASSPHRASE")
	if passphrase == "" {
		var err error
		passphrase, err = readPassphrase()
		if err != nil {
			return nil, err
		}
	}

	salt, err := hex.DecodeString(km.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	wrapped, err := hex.DecodeString(km.WrappedDEK)
	if err != nil {
		return nil, fmt.Errorf("decode wrapped key: %w", err)
	}

	kek, err := crypto.DeriveKeyFromPassphraseWithSalt(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	dek, err := crypto.Decrypt(kek, wrapped)
	if err != nil {
		return nil, fmt.Errorf("unwrap data key (wrong passphrase?): %w", err)
	}
	return dek, nil
}

func printSyncStatus(coord *coordinator.Coordinator) error {
	st := coord.Status()

	output.Title("Sync status")
	output.Info("State:       %s", st.State)
	if !st.LastSyncAt.IsZero() {
		output.Info("Last sync:   %s", st.LastSyncAt.Format(time.RFC3339))
	} else {
		output.Info("Last sync:   never")
	}
	output.Info("Pending:     %d", st.Pending)
	if st.Quarantined > 0 {
		output.Warning("Quarantined: %d (run: lift queue --failed)", st.Quarantined)
	}
	if st.LastError != "" {
		output.Subtle("Last error: %s", st.LastError)
	}
	return nil
}

func init() {
	syncCmd.Flags().Bool("push", false, "push queued changes only")
	syncCmd.Flags().Bool("pull", false, "pull and merge remote changes only")
	syncCmd.Flags().Bool("status", false, "show sync status without syncing")
	syncCmd.Flags().Bool("watch", false, "keep syncing on an interval")
	rootCmd.AddCommand(syncCmd)
}
