package engine

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"hash"
	"hash/crc32"

	"github.com/torosent/loaded/internal/config"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// newHash returns a hash for algo, or nil when no checksum is configured.
func newHash(algo config.ChecksumAlgorithm) hash.Hash {
	switch algo {
	case config.ChecksumMD5:
		return md5.New()
	case config.ChecksumCRC32:
		return crc32.NewIEEE()
	case config.ChecksumCRC32C:
		return crc32.New(castagnoli)
	case config.ChecksumSHA1:
		return sha1.New()
	case config.ChecksumSHA256:
		return sha256.New()
	default:
		return nil
	}
}

// ChecksumHeader returns the request header carrying a digest of algo.
func ChecksumHeader(algo config.ChecksumAlgorithm) string {
	switch algo {
	case config.ChecksumMD5:
		return "Content-MD5"
	case config.ChecksumCRC32:
		return "x-amz-checksum-crc32"
	case config.ChecksumCRC32C:
		return "x-amz-checksum-crc32c"
	case config.ChecksumSHA1:
		return "x-amz-checksum-sha1"
	case config.ChecksumSHA256:
		return "x-amz-checksum-sha256"
	default:
		return ""
	}
}

// encodeDigest renders the raw digest bytes in base64. CRC digests are the
// 4-byte big-endian value.
func encodeDigest(h hash.Hash) string {
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
