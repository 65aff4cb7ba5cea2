package cmd

import (
	"bufio"
	"context"
	"crypto/ecdh"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/marcus/lift/internal/crypto"
	"github.com/marcus/lift/internal/output"
	"github.com/marcus/lift/internal/remote"
	"github.com/marcus/lift/internal/syncconfig"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage sync authentication",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the sync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		if serverURL == "" {
			serverURL = syncconfig.GetServerURL()
		}

		fmt.Print("API key: ")
		reader := bufio.NewReader(os.Stdin)
		apiKey, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read api key: %w", err)
		}
		apiKey = strings.TrimSpace(apiKey)
		if apiKey == "" {
			return fmt.Errorf("api key required")
		}

		deviceID, err := syncconfig.GetDeviceID()
		if err != nil {
			return fmt.Errorf("get device id: %w", err)
		}

		// Verify against the server before persisting anything.
		client := remote.New(serverURL, apiKey, deviceID)
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if _, err := client.Health(ctx); err != nil {
			output.Error("server check failed: %v", err)
			return err
		}

		creds := &syncconfig.AuthCredentials{
			APIKey:    apiKey,
			ServerURL: serverURL,
			DeviceID:  deviceID,
		}
		if err := syncconfig.SaveAuth(creds); err != nil {
			output.Error("save credentials: %v", err)
			return err
		}

		output.Success("Logged in to %s (device %s)", serverURL, deviceID[:8])
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := syncconfig.ClearAuth(); err != nil {
			output.Error("clear credentials: %v", err)
			return err
		}
		output.Success("Logged out")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !syncconfig.IsAuthenticated() {
			output.Info("Not logged in (run: lift auth login)")
			return nil
		}
		creds, err := syncconfig.LoadAuth()
		if err != nil {
			return err
		}
		output.Info("Server: %s", syncconfig.GetServerURL())
		if creds != nil && creds.DeviceID != "" {
			output.Info("Device: %s", creds.DeviceID)
		}
		km, err := syncconfig.LoadKeyMaterial()
		if err != nil {
			return err
		}
		if km != nil {
			output.Info("Encryption: enabled")
		} else {
			output.Info("Encryption: disabled")
		}
		return nil
	},
}

var authEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Enable end-to-end encryption of synced payloads",
	Long: `Generates a data key and wraps it under a key derived from your
passphrase. The server only ever stores ciphertext; losing the passphrase
means losing access to remote copies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if km, err := syncconfig.LoadKeyMaterial(); err != nil {
			return err
		} else if km != nil {
			output.Warning("encryption is already enabled")
			return nil
		}

		passphrase, err := readPassphrase()
		if err != nil {
			return err
		}

		dek, err := crypto.GenerateDEK()
		if err != nil {
			return fmt.Errorf("generate data key: %w", err)
		}
		kek, salt, err := crypto.DeriveKeyFromPassphrase(passphrase)
		if err != nil {
			return fmt.Errorf("derive key: %w", err)
		}
		wrapped, err := crypto.Encrypt(kek, dek)
		if err != nil {
			return fmt.Errorf("wrap data key: %w", err)
		}

		km := &syncconfig.KeyMaterial{
			Salt:       hex.EncodeToString(salt),
			WrappedDEK: hex.EncodeToString(wrapped),
		}
		if err := syncconfig.SaveKeyMaterial(km); err != nil {
			output.Error("save key material: %v", err)
			return err
		}

		output.Success("Encryption enabled")
		output.Warning("Entities already on the server remain unencrypted until re-pushed")
		return nil
	},
}

var authEnrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Start enrolling this device for encrypted sync",
	Long: `Generates an enrollment keypair and prints the public key. Run
'lift auth approve <public-key>' on a device that already has encryption
enabled, then redeem the printed grant here with 'lift auth join'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if km, err := syncconfig.LoadKeyMaterial(); err != nil {
			return err
		} else if km != nil {
			output.Warning("this device already has encryption enabled")
			return nil
		}

		if ek, err := syncconfig.LoadEnrollKey(); err != nil {
			return err
		} else if ek != nil {
			priv, err := enrollPrivateKey(ek)
			if err != nil {
				return err
			}
			output.Info("Enrollment already in progress")
			output.Info("Public key: %s", hex.EncodeToString(priv.PublicKey().Bytes()))
			return nil
		}

		priv, pub, err := crypto.GenerateKeyPair()
		if err != nil {
			return err
		}
		ek := &syncconfig.EnrollKey{PrivateKey: hex.EncodeToString(priv.Bytes())}
		if err := syncconfig.SaveEnrollKey(ek); err != nil {
			output.Error("save enrollment key: %v", err)
			return err
		}

		output.Success("Enrollment started")
		output.Info("Public key: %s", hex.EncodeToString(pub.Bytes()))
		output.Subtle("On an encrypted device run: lift auth approve <public-key>")
		output.Subtle("Then here: lift auth join <grant>")
		return nil
	},
}

var authApproveCmd = &cobra.Command{
	Use:   "approve <public-key>",
	Short: "Grant a new device access to the encryption key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := syncconfig.LoadKeyMaterial()
		if err != nil {
			return err
		}
		if km == nil {
			output.Error("encryption is not enabled (run: lift auth encrypt)")
			return fmt.Errorf("no key material")
		}

		pubBytes, err := hex.DecodeString(strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("decode public key: %w", err)
		}
		recipientPub, err := crypto.ParsePublicKey(pubBytes)
		if err != nil {
			return err
		}

		dek, err := unlockDEK(km)
		if err != nil {
			return err
		}

		// Ephemeral sender key: the grant carries everything the new
		// device needs alongside its own private key.
		senderPriv, senderPub, err := crypto.GenerateKeyPair()
		if err != nil {
			return err
		}
		wrapped, err := crypto.WrapKey(senderPriv, recipientPub, dek)
		if err != nil {
			return fmt.Errorf("wrap data key: %w", err)
		}

		output.Success("Grant for the new device:")
		fmt.Println(crypto.EncodeGrant(senderPub, wrapped))
		output.Subtle("On the new device run: lift auth join <grant>")
		return nil
	},
}

var authJoinCmd = &cobra.Command{
	Use:   "join <grant>",
	Short: "Redeem a grant and finish enrolling this device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if km, err := syncconfig.LoadKeyMaterial(); err != nil {
			return err
		} else if km != nil {
			output.Warning("this device already has encryption enabled")
			return nil
		}

		ek, err := syncconfig.LoadEnrollKey()
		if err != nil {
			return err
		}
		if ek == nil {
			output.Error("no enrollment in progress (run: lift auth enroll)")
			return fmt.Errorf("no enrollment key")
		}
		priv, err := enrollPrivateKey(ek)
		if err != nil {
			return err
		}

		senderPub, wrapped, err := crypto.DecodeGrant(strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}
		dek, err := crypto.UnwrapKey(priv, senderPub, wrapped)
		if err != nil {
			return fmt.Errorf("unwrap data key (grant for a different key?): %w", err)
		}

		// Re-wrap under this device's own passphrase.
		passphrase, err := readPassphrase()
		if err != nil {
			return err
		}
		kek, salt, err := crypto.DeriveKeyFromPassphrase(passphrase)
		if err != nil {
			return fmt.Errorf("derive key: %w", err)
		}
		rewrapped, err := crypto.Encrypt(kek, dek)
		if err != nil {
			return fmt.Errorf("wrap data key: %w", err)
		}

		km := &syncconfig.KeyMaterial{
			Salt:       hex.EncodeToString(salt),
			WrappedDEK: hex.EncodeToString(rewrapped),
		}
		if err := syncconfig.SaveKeyMaterial(km); err != nil {
			output.Error("save key material: %v", err)
			return err
		}
		if err := syncconfig.ClearEnrollKey(); err != nil {
			output.Warning("remove enrollment key: %v", err)
		}

		output.Success("Encryption enabled on this device")
		return nil
	},
}

func enrollPrivateKey(ek *syncconfig.EnrollKey) (*ecdh.PrivateKey, error) {
	b, err := hex.DecodeString(ek.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decode enrollment key: %w", err)
	}
	return crypto.ParsePrivateKey(b)
}

func readPassphrase() (string, error) {
	fmt.Print("Passphrase: ")
	reader := bufio.NewReader(os.Stdin)
	passphrase, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	passphrase = strings.TrimSpace(passphrase)
	if len(passphrase) < 8 {
		return "", fmt.Errorf("passphrase must be at least 8 characters")
	}
	return passphrase, nil
}

func init() {
	authLoginCmd.Flags().String("server", "", "sync server URL")
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authEncryptCmd)
	authCmd.AddCommand(authEnrollCmd)
	authCmd.AddCommand(authApproveCmd)
	authCmd.AddCommand(authJoinCmd)
	rootCmd.AddCommand(authCmd)
}
