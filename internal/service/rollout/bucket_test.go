package rollout

import (
	"fmt"
	"testing"
)

func TestBucketIsDeterministic(t *testing.T) {
	first := Bucket("dk_prod", "device-123")
	for i := 0; i < 100; i++ {
		if got := Bucket("dk_prod", "device-123"); got != first {
			t.Fatalf("bucket changed between calls: %d vs %d", got, first)
		}
	}
}

func TestBucketStaysInRange(t *testing.T) {
	for i := 0; i < 10_000; i++ {
		b := Bucket("dk_prod", fmt.Sprintf("device-%d", i))
		if b < 0 || b > 99 {
			t.Fatalf("bucket %d out of range for device-%d", b, i)
		}
	}
}

func TestBucketVariesByDeploymentKey(t *testing.T) {
	// The same device can land in different buckets for different
	// deployments; one's rollout placement never pins the other's.
	same := 0
	total := 1000
	for i := 0; i < total; i++ {
		device := fmt.Sprintf("device-%d", i)
		if Bucket("dk_staging", device) == Bucket("dk_prod", device) {
			same++
		}
	}
	if same == total {
		t.Fatalf("all %d devices bucketed identically across deployments", total)
	}
}

func TestBucketDistributionIsRoughlyUniform(t *testing.T) {
	counts := make([]int, 100)
	total := 100_000
	for i := 0; i < total; i++ {
		counts[Bucket("dk_prod", fmt.Sprintf("device-%d", i))]++
	}
	expected := total / 100
	for b, c := range counts {
		if c < expected/2 || c > expected*2 {
			t.Fatalf("bucket %d has %d devices, expected near %d", b, c, expected)
		}
	}
}
