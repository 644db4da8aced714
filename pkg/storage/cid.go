package storage

import (
	"fmt"
	"strings"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ValidateCID checks that a string is a plausible IPFS content identifier.
// Evidence attached to checklist items is referenced by CID; the files
// themselves are pinned by the reporting party's tooling.
func ValidateCID(cid string) error {
	switch {
	case len(cid) == 46 && strings.HasPrefix(cid, "Qm"):
		// CIDv0: base58-encoded sha2-256 multihash
		for _, r := range cid {
			if !strings.ContainsRune(base58Alphabet, r) {
				return fmt.Errorf("invalid CID %q: character %q not in base58 alphabet", cid, r)
			}
		}
		return nil
	case strings.HasPrefix(cid, "b") && len(cid) >= 9:
		// CIDv1: lowercase base32
		for _, r := range cid[1:] {
			if !(r >= 'a' && r <= 'z') && !(r >= '2' && r <= '7') {
				return fmt.Errorf("invalid CID %q: character %q not in base32 alphabet", cid, r)
			}
		}
		return nil
	}
	return fmt.Errorf("invalid CID %q: unrecognized format", cid)
}

// ValidateCIDs validates a batch of evidence references
func ValidateCIDs(cids []string) error {
	for _, cid := range cids {
		if err := ValidateCID(cid); err != nil {
			return err
		}
	}
	return nil
}
