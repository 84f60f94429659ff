package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
)

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.bin")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestSHA256(t *testing.T) {
	path := writeTestFile(t, "hello world")

	// Known digest of "hello world"
	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

	got, err := SHA256(path)
	if err != nil {
		t.Fatalf("SHA256 failed: %v", err)
	}
	if got != want {
		t.Errorf("SHA256 = %s, want %s", got, want)
	}
}

func TestVerifyChecksum(t *testing.T) {
	path := writeTestFile(t, "hello world")

	tests := []struct {
		name     string
		expected string
		wantErr  bool
	}{
		{
			name:     "matching_checksum",
			expected: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
			wantErr:  false,
		},
		{
			name:     "matching_uppercase",
			expected: "B94D27B9934D3E08A52E52D7DA7DABFAC484EFE37A5380EE9088F7ACE2EFCDE9",
			wantErr:  false,
		},
		{
			name:     "mismatch",
			expected: "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
			wantErr:  true,
		},
	}

	verifier := NewVerifier("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.VerifyChecksum(path, tt.expected)
			if (err != nil) != tt.wantErr {
				t.Errorf("VerifyChecksum error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// newSigningKey generates a throwaway key pair and returns the entity
// plus the path of a binary public keyring written to disk.
func newSigningKey(t *testing.T) (*openpgp.Entity, string) {
	t.Helper()

	entity, err := openpgp.NewEntity("binforge test", "", "test@invalid", nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	keyringPath := filepath.Join(t.TempDir(), "keyring.gpg")
	keyringFile, err := os.Create(keyringPath)
	if err != nil {
		t.Fatalf("create keyring file: %v", err)
	}
	defer func() { _ = keyringFile.Close() }()

	if err := entity.Serialize(keyringFile); err != nil {
		t.Fatalf("serialize public key: %v", err)
	}

	return entity, keyringPath
}

func TestVerifySignature(t *testing.T) {
	entity, keyringPath := newSigningKey(t)
	artifactPath := writeTestFile(t, "signed artifact contents")

	// Detach-sign the artifact.
	signaturePath := filepath.Join(t.TempDir(), "artifact.sig")
	sigFile, err := os.Create(signaturePath)
	if err != nil {
		t.Fatalf("create signature file: %v", err)
	}
	artifact, err := os.Open(artifactPath)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	if err := openpgp.DetachSign(sigFile, entity, artifact, nil); err != nil {
		t.Fatalf("sign artifact: %v", err)
	}
	_ = artifact.Close()
	if err := sigFile.Close(); err != nil {
		t.Fatalf("close signature file: %v", err)
	}

	verifier := NewVerifier(keyringPath)

	if err := verifier.VerifySignature(artifactPath, signaturePath); err != nil {
		t.Errorf("expected valid signature, got: %v", err)
	}

	// Tampered artifact must fail.
	tamperedPath := writeTestFile(t, "tampered artifact contents")
	if err := verifier.VerifySignature(tamperedPath, signaturePath); err == nil {
		t.Error("expected tampered artifact to fail verification")
	}

	// Unknown key must fail.
	_, otherKeyring := newSigningKey(t)
	otherVerifier := NewVerifier(otherKeyring)
	if err := otherVerifier.VerifySignature(artifactPath, signaturePath); err == nil {
		t.Error("expected unknown signer to fail verification")
	}
}

func TestVerifySignatureWithoutKeyring(t *testing.T) {
	verifier := NewVerifier("")
	artifactPath := writeTestFile(t, "artifact")
	if err := verifier.VerifySignature(artifactPath, artifactPath); err == nil {
		t.Error("expected error when no keyring is configured")
	}
}
