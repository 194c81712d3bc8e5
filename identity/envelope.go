package identity

import (
	"encoding/pem"
	"fmt"
	"os"
)

// pemBlockType is the PEM block type used for persisted identity secrets.
// There is no format specific to any language ecosystem; PEM is a plain
// ASCII envelope around 32 raw bytes.
const pemBlockType = "BUCKETS IDENTITY KEY"

// envelopeMode restricts the persisted key file to the owning user.
const envelopeMode = 0o600

// SaveEnvelope persists the identity's secret seed to path as a PEM block
// with mode 0600.
func (id *Identity) SaveEnvelope(path string) error {
	block := &pem.Block{
		Type:  pemBlockType,
		Bytes: id.secret[:],
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), envelopeMode); err != nil {
		return fmt.Errorf("identity: write envelope %s: %w", path, err)
	}
	return os.Chmod(path, envelopeMode)
}

// LoadEnvelope reads an identity secret previously written by SaveEnvelope.
func LoadEnvelope(path string) (*Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read envelope %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != pemBlockType {
		return nil, fmt.Errorf("identity: %s is not a valid identity envelope", path)
	}
	return FromSeed(block.Bytes)
}
