package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// domainPack is the domain-separation prefix for pack content digests.
// The version suffix allows a future algorithm migration without
// colliding with existing digests.
const domainPack = "ruledger/pack/v1"

// hashWithDomain computes SHA-256 over domain + 0x00 + data. The null
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes the content digest of a pack's rule content: the
// fields that determine calculation outcomes, excluding SourceDigest
// itself and SourceURL (provenance pointers, not rule content).
//
// The digest is stable across load order, map iteration, and process
// restarts because it hashes canonical JSON.
func Digest(p *Pack) (string, error) {
	brackets := make([]any, len(p.Brackets))
	for i, b := range p.Brackets {
		entry := map[string]any{
			"lower_bound":   b.Lower.String(),
			"base_amount":   b.BaseAmount.String(),
			"marginal_rate": b.MarginalRate.String(),
		}
		if b.Upper != nil {
			entry["upper_bound"] = b.Upper.String()
		}
		brackets[i] = entry
	}

	content := map[string]any{
		"id":             p.ID,
		"version":        p.Version,
		"product":        p.Product,
		"semantics":      string(p.Semantics),
		"effective_from": p.EffectiveFrom.Format("2006-01-02"),
		"brackets":       brackets,
	}
	if p.EffectiveTo != nil {
		content["effective_to"] = p.EffectiveTo.Format("2006-01-02")
	}
	if len(p.Rates) > 0 {
		rates := make(map[string]any, len(p.Rates))
		for category, rate := range p.Rates {
			rates[category] = rate.String()
		}
		content["rates"] = rates
	}
	if p.AllowanceRate.Sign() != 0 {
		content["allowance_rate"] = p.AllowanceRate.String()
	}

	canonical, err := marshalCanonical(content)
	if err != nil {
		return "", fmt.Errorf("digest pack %s: %w", p.ID, err)
	}
	return hashWithDomain(domainPack, canonical), nil
}

// VerifyDigest recomputes a pack's content digest and compares it to
// the declared SourceDigest. An empty declared digest passes (digests
// are optional provenance); a mismatch is a fatal ConfigError.
func VerifyDigest(p *Pack) error {
	if p.SourceDigest == "" {
		return nil
	}
	got, err := Digest(p)
	if err != nil {
		return err
	}
	if got != p.SourceDigest {
		return &ConfigError{PackID: p.ID, Field: "source_digest",
			Message: fmt.Sprintf("declared %s, computed %s", p.SourceDigest, got)}
	}
	return nil
}
