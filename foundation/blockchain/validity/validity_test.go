package validity_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
)

func Test_InvalidError(t *testing.T) {
	err := fmt.Errorf("apply: %w", validity.Invalid(validity.Stale, "nonce %d < %d", 4, 5))

	if !validity.IsInvalid(err) {
		t.Fatalf("Should find the invalid error through wrapping.")
	}

	reason, ok := validity.ReasonOf(err)
	if !ok || reason != validity.Stale {
		t.Fatalf("Should get back the stale reason, got %s", reason)
	}

	if validity.IsInvalid(errors.New("boom")) {
		t.Fatalf("Should not classify other errors as invalid.")
	}

	if got := validity.BadMetadataHash.String(); got != "BadMetadataHash" {
		t.Fatalf("Should name the reason, got %s", got)
	}
}

func Test_Combine(t *testing.T) {
	a := validity.Valid{Priority: 10, Provides: [][]byte{{1}}, Longevity: 64, Propagate: true}
	b := validity.Valid{Priority: 5, Requires: [][]byte{{0}}, Longevity: 16, Propagate: true}

	got := validity.Default().Combine(a).Combine(b)

	if got.Priority != 15 {
		t.Fatalf("Should add priorities, got %d", got.Priority)
	}
	if got.Longevity != 16 {
		t.Fatalf("Should keep the shortest longevity, got %d", got.Longevity)
	}
	if len(got.Provides) != 1 || len(got.Requires) != 1 {
		t.Fatalf("Should accumulate tags, got %v %v", got.Provides, got.Requires)
	}
	if !got.Propagate {
		t.Fatalf("Should propagate when all agree.")
	}

	top := validity.Valid{Priority: ^uint64(0)}
	if got := top.Combine(a); got.Priority != ^uint64(0) {
		t.Fatalf("Should saturate the priority, got %d", got.Priority)
	}
}
