package memory

import (
	"testing"

	"github.com/code-payments/code-distributor/pkg/code/data/custody/tests"
)

func TestCustodyMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunTests(t, testStore, teardown)
}

func TestCustodyMemoryStore_SnapshotRestore(t *testing.T) {
	tests.RunSnapshotTests(t, New().(*store))
}
