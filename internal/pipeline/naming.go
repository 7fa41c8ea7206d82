package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
)

const defaultHashLength = 20

var placeholderRe = regexp.MustCompile(`(?i)\[(name|ext|contenthash|chunkhash)(?::(\d+))?\]`)

// contentHasher digests final artifact bytes for [contenthash].
type contentHasher struct {
	newHash func() hash.Hash
	encode  func([]byte) string
	length  int
}

func newContentHasher(spec OutputSpec) (*contentHasher, error) {
	h := &contentHasher{length: spec.HashLength}
	if h.length <= 0 {
		h.length = defaultHashLength
	}

	switch strings.ToLower(spec.HashFunction) {
	case "", "crc64nvme":
		h.newHash = func() hash.Hash { return crc64nvme.New() }
	case "sha256":
		h.newHash = sha256.New
	default:
		return nil, fmt.Errorf("unsupported hash function %q", spec.HashFunction)
	}

	switch strings.ToLower(spec.HashDigest) {
	case "", "hex":
		h.encode = hex.EncodeToString
	case "base58":
		h.encode = base58.Encode
	default:
		return nil, fmt.Errorf("unsupported hash digest %q", spec.HashDigest)
	}

	return h, nil
}

// Sum returns the encoded digest of content, truncated to the configured length.
func (h *contentHasher) Sum(content []byte) string {
	d := h.newHash()
	_, _ = d.Write(content)
	return truncate(h.encode(d.Sum(nil)), h.length)
}

func truncate(s string, n int) string {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// interpolate expands a filename pattern. contentHash is only computed when
// the pattern asks for it.
func interpolate(pattern, name, ext string, contentHash func() string) string {
	return placeholderRe.ReplaceAllStringFunc(pattern, func(token string) string {
		m := placeholderRe.FindStringSubmatch(token)
		switch strings.ToLower(m[1]) {
		case "name":
			return name
		case "ext":
			return ext
		default:
			digest := contentHash()
			if m[2] != "" {
				n, err := strconv.Atoi(m[2])
				if err == nil {
					digest = truncate(digest, n)
				}
			}
			return digest
		}
	})
}

// splitName returns the stem and extension, without the dot, of a source path.
func splitName(p string) (string, string) {
	base := path.Base(p)
	ext := path.Ext(base)
	return strings.TrimSuffix(base, ext), strings.TrimPrefix(ext, ".")
}

// relativeURL returns target relative to the directory holding from. Both
// are slash separated output paths.
func relativeURL(from, target string) string {
	dir := path.Dir(from)
	if dir == "." {
		return target
	}

	fromParts := strings.Split(dir, "/")
	targetParts := strings.Split(target, "/")
	i := 0
	for i < len(fromParts) && i < len(targetParts)-1 && fromParts[i] == targetParts[i] {
		i++
	}

	var b strings.Builder
	for range fromParts[i:] {
		b.WriteString("../")
	}
	b.WriteString(strings.Join(targetParts[i:], "/"))
	return b.String()
}
