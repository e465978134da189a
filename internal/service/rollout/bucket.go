package rollout

import "github.com/cespare/xxhash/v2"

// Bucket maps a (deploymentKey, clientUniqueID) pair to a stable value in
// [0,99]. The bucket never changes for the life of the pair, so a device's
// inclusion in a percentage rollout cannot flap between polls. No
// device-to-bucket state is ever persisted.
func Bucket(deploymentKey, clientUniqueID string) int {
	return int(xxhash.Sum64String(deploymentKey+":"+clientUniqueID) % 100)
}
