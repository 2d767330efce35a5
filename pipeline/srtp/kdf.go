package srtp

import (
	"crypto/aes"
	"crypto/cipher"
)

// Key derivation labels per RFC 3711 §4.3.
const (
	labelRTPEncr  byte = 0x00
	labelRTPAuth  byte = 0x01
	labelRTPSalt  byte = 0x02
	labelRTCPEncr byte = 0x03
	labelRTCPAuth byte = 0x04
	labelRTCPSalt byte = 0x05
)

// deriveKey implements the RFC 3711 §4.3.1 AES-CM based key derivation
// function: with key derivation rate 0 (the only rate spec §4.5 requires),
// the derived key is the first `length` bytes of AES-CM keystream produced
// under masterKey with IV = (label || zero-pad) XOR (masterSalt || 0x0000).
func deriveKey(masterKey, masterSalt []byte, label byte, length int) ([]byte, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, 16)
	copy(iv, masterSalt) // masterSalt is 14 bytes; last 2 bytes of iv stay zero (the CM counter field)
	// key_id = label at byte index 7 from the end of the 14-byte salt field,
	// i.e. iv[7], followed by the six zero index bytes and the two counter bytes.
	iv[7] ^= label

	out := make([]byte, length)
	stream := cipher.NewCTR(block, iv)
	stream.XORKeyStream(out, out)
	return out, nil
}

// sessionKeys holds the three derived keys/salts for one direction (RTP or
// RTCP) of one crypto context.
type sessionKeys struct {
	encrKey []byte
	authKey []byte
	salt    []byte
}

func deriveSessionKeys(masterKey, masterSalt []byte, params profileParams, encrLabel, authLabel, saltLabel byte) (sessionKeys, error) {
	encr, err := deriveKey(masterKey, masterSalt, encrLabel, params.keyLen)
	if err != nil {
		return sessionKeys{}, err
	}
	salt, err := deriveKey(masterKey, masterSalt, saltLabel, params.saltLen)
	if err != nil {
		return sessionKeys{}, err
	}
	var auth []byte
	if !params.aead {
		// SHA1-HMAC auth keys are conventionally derived at 160 bits
		// regardless of cipher key size (RFC 3711 §4.3, table 1).
		auth, err = deriveKey(masterKey, masterSalt, authLabel, 20)
		if err != nil {
			return sessionKeys{}, err
		}
	}
	return sessionKeys{encrKey: encr, authKey: auth, salt: salt}, nil
}

// zero overwrites a key buffer in place, used on rekey and session close per
// spec §4.5's "previous keys MUST be zeroed, not just dereferenced".
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
