package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/keys"
)

// PassphraseEnv overrides the interactive passphrase prompt.
const PassphraseEnv = "EXPOSUREKEYS_PASSPHRASE"

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// getPassphrase returns the signing key passphrase from PassphraseEnv or,
// failing that, from the terminal without echo. The caller should wipe the
// result.
var getPassphrase = func(w io.Writer) ([]byte, error) {
	if v := os.Getenv(PassphraseEnv); v != "" {
		return []byte(v), nil
	}
	if _, err := fmt.Fprint(w, "Signing key passphrase: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, fmt.Errorf("empty passphrase")
	}
	return pw, nil
}

// readKeysFile loads a JSON array of api.ExposureKey.
func readKeysFile(path string) ([]keys.DiagnosisKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var eks []api.ExposureKey
	if err := json.Unmarshal(data, &eks); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	ks, err := api.ToKeys(eks)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ks, nil
}
