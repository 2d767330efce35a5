// Package srtp implements the C5 SRTP/SRTCP session contract (spec §4.5):
// protect/unprotect over RTP/RTCP packet buffers with replay protection and
// rekeying, built directly on the standard library's crypto/aes,
// crypto/cipher, crypto/hmac and crypto/sha1 rather than a socket-oriented
// SRTP library (see DESIGN.md for why github.com/pion/srtp/v3 was not used:
// it binds to net.Conn/net.PacketConn and does not expose a buffer-level
// protect/unprotect API with the error semantics spec §4.5 requires).
package srtp

import "fmt"

// Profile identifies an SRTP crypto suite per RFC 3711 / RFC 7714.
type Profile int

const (
	ProfileAES128CMHMACSHA1_80 Profile = iota
	ProfileAES128CMHMACSHA1_32
	ProfileAEADAES128GCM
	ProfileAEADAES256GCM
)

func (p Profile) String() string {
	switch p {
	case ProfileAES128CMHMACSHA1_80:
		return "AES_CM_128_HMAC_SHA1_80"
	case ProfileAES128CMHMACSHA1_32:
		return "AES_CM_128_HMAC_SHA1_32"
	case ProfileAEADAES128GCM:
		return "AEAD_AES_128_GCM"
	case ProfileAEADAES256GCM:
		return "AEAD_AES_256_GCM"
	default:
		return "unknown"
	}
}

// profileParams captures the key/salt/tag sizing for a profile.
type profileParams struct {
	keyLen  int
	saltLen int
	tagLen  int
	aead    bool
}

func paramsFor(p Profile) (profileParams, error) {
	switch p {
	case ProfileAES128CMHMACSHA1_80:
		return profileParams{keyLen: 16, saltLen: 14, tagLen: 10}, nil
	case ProfileAES128CMHMACSHA1_32:
		return profileParams{keyLen: 16, saltLen: 14, tagLen: 4}, nil
	case ProfileAEADAES128GCM:
		return profileParams{keyLen: 16, saltLen: 12, tagLen: 16, aead: true}, nil
	case ProfileAEADAES256GCM:
		return profileParams{keyLen: 32, saltLen: 12, tagLen: 16, aead: true}, nil
	default:
		return profileParams{}, fmt.Errorf("srtp: unknown profile %v", p)
	}
}

// MasterKeySize returns the expected master key length in bytes for a profile.
func MasterKeySize(p Profile) (int, error) {
	params, err := paramsFor(p)
	if err != nil {
		return 0, err
	}
	return params.keyLen, nil
}

// MasterSaltSize returns the expected master salt length in bytes for a profile.
func MasterSaltSize(p Profile) (int, error) {
	params, err := paramsFor(p)
	if err != nil {
		return 0, err
	}
	return params.saltLen, nil
}
