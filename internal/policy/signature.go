package policy

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// ErrNoSignature is returned by VerifyCommit when a commit carries no
// signature at all — distinct from a signature that fails to verify, so
// callers can tell "unsigned" from "forged" apart in logs.
var ErrNoSignature = errors.New("policy: commit has no signature")

// VerifyCommit checks an SSH signature in wire format (an ssh.Signature
// blob, spec.md section 4.2) directly over payload using the given
// authorized_keys-format public key line. The armored SSHSIG format that
// `ssh-keygen -Y sign` writes is not accepted. It returns the key's fingerprint
// on success so callers can match it against a rule's allowedKeys.
func VerifyCommit(authorizedKeyLine []byte, payload, sig []byte) (fingerprint string, err error) {
	if len(sig) == 0 {
		return "", ErrNoSignature
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey(authorizedKeyLine)
	if err != nil {
		return "", fmt.Errorf("policy: parse signer key: %w", err)
	}

	var parsed ssh.Signature
	if err := ssh.Unmarshal(sig, &parsed); err != nil {
		return "", fmt.Errorf("policy: parse signature: %w", err)
	}
	if err := pub.Verify(payload, &parsed); err != nil {
		return "", fmt.Errorf("policy: signature verification failed: %w", err)
	}
	return ssh.FingerprintSHA256(pub), nil
}
