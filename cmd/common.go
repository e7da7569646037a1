package cmd

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/illarion/storekit/internal/crypto"
	"github.com/illarion/storekit/internal/store"
)

// PassphraseEnv overrides the interactive passphrase prompt.
const PassphraseEnv = "STOREKIT_PASSPHRASE"

// OpenManager loads the directory configuration and opens the store,
// acquiring the passphrase when encryption is enabled. The caller must
// Close the returned manager.
func OpenManager(configPath string) (*store.Manager, error) {
	fc, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	var passphrase []byte
	if fc.Encryption {
		passphrase, err = getPassphrase("Enter passphrase: ")
		if err != nil {
			return nil, err
		}
		defer crypto.ClearBytes(passphrase)
	}

	return store.New(fc.StoreConfig(passphrase, fc.Logger()))
}

// getPassphrase reads the passphrase from the environment or, failing
// that, prompts on the terminal without echo.
func getPassphrase(prompt string) ([]byte, error) {
	if env := os.Getenv(PassphraseEnv); env != "" {
		return []byte(env), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	passphrase, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return passphrase, nil
}

// HandleError prints err and exits non-zero.
func HandleError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(1)
}
