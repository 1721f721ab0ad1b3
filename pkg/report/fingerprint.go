package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/fullbleed/verify/pkg/registry"
)

// Fingerprint computes the contract fingerprint: the SHA-256 of the
// RFC 8785 canonical form of the contract version plus every loaded
// registry document. Byte-identical registries under the same contract
// version always produce the same fingerprint.
func Fingerprint(set *registry.Set) (string, error) {
	payload := struct {
		ContractVersion string                     `json:"contract_version"`
		Registries      map[string]json.RawMessage `json:"registries"`
	}{
		ContractVersion: ContractVersion,
		Registries:      make(map[string]json.RawMessage),
	}
	for _, name := range registry.Names() {
		payload.Registries[name] = json.RawMessage(set.Text(name))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("report: fingerprint payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("report: canonicalize fingerprint payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// NewTooling builds the tooling block for both envelopes.
func NewTooling(set *registry.Set) (Tooling, error) {
	fp, err := Fingerprint(set)
	if err != nil {
		return Tooling{}, err
	}
	return Tooling{
		ContractID:          ContractID,
		ContractVersion:     ContractVersion,
		ContractFingerprint: fp,
	}, nil
}
