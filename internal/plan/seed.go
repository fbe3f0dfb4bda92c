package plan

import "github.com/cespare/xxhash/v2"

const golden = 0x9e3779b97f4a7c15

// HashSeed reduces the run seed string to the 64-bit value every derived seed
// starts from.
func HashSeed(seed string) uint64 {
	return xxhash.Sum64String(seed)
}

// SubSeed derives the seed owned by the connection at index.
func SubSeed(seed, index uint64) uint64 {
	return mix(seed ^ mix((index+1)*golden))
}

// RequestSeed derives the seed for the n-th request of a connection.
func RequestSeed(subSeed, n uint64) uint64 {
	return mix(subSeed + (n+1)*golden)
}

// mix is the splitmix64 finalizer.
func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
