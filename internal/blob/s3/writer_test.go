package s3blob

import "testing"

func TestClampPartSize(t *testing.T) {
	if got := clampPartSize(1024); got != minPartSize {
		t.Fatalf("clampPartSize(1024) = %d, want the 5 MiB minimum", got)
	}
	if got := clampPartSize(0); got != minPartSize {
		t.Fatalf("clampPartSize(0) = %d, want the 5 MiB minimum", got)
	}
	want := int64(64 * 1024 * 1024)
	if got := clampPartSize(want); got != want {
		t.Fatalf("clampPartSize(64MiB) = %d", got)
	}
}
