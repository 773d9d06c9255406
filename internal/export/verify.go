package export

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/dmitrijs2005/exposurekeys/internal/signing"
)

// VerificationKey is a trusted public key for one (KeyID, KeyVersion).
type VerificationKey struct {
	KeyID      string
	KeyVersion string
	PublicKey  *ecdsa.PublicKey
}

// Verify succeeds when at least one signature from a known signer checks out
// over a.Signed and names the archive's own batch. Signatures from unknown
// signers are ignored. If known signers are present but none verifies the
// error wraps ErrSignatureInvalid; if none is known it wraps ErrUnknownSigner.
func Verify(a *Archive, trusted []VerificationKey) error {
	known := 0
	for _, s := range a.Signatures {
		for _, vk := range trusted {
			if vk.KeyID != s.Info.KeyID || vk.KeyVersion != s.Info.KeyVersion {
				continue
			}
			known++
			if s.Info.AlgorithmOID != signing.AlgorithmOID {
				continue
			}
			if s.BatchNum != a.Batch.BatchNum || s.BatchSize != a.Batch.BatchSize {
				continue
			}
			if signing.Verify(vk.PublicKey, a.Signed, s.Signature) {
				return nil
			}
		}
	}

	if known == 0 {
		return fmt.Errorf("%w: %d signatures checked", ErrUnknownSigner, len(a.Signatures))
	}
	return fmt.Errorf("%w: %d candidate signatures failed", ErrSignatureInvalid, known)
}
