package memory

import (
	"testing"

	"github.com/code-payments/code-distributor/pkg/code/data/distribution/tests"
)

func TestDistributionMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunTests(t, testStore, teardown)
}

func TestDistributionMemoryStore_SnapshotRestore(t *testing.T) {
	tests.RunSnapshotTests(t, New().(*store))
}
