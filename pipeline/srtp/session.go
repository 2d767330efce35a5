package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrAuthFailed marks an SRTP authentication-tag mismatch (HMAC or AEAD),
// so callers can tell a corrupted/forged packet apart from a replay or a
// too-old index (spec §7: AuthFailed and ReplayAttack are classified and
// counted separately).
var ErrAuthFailed = errors.New("srtp: authentication failed")

// Session is one SRTP crypto context covering a single SSRC in one
// direction's worth of send or receive traffic, per spec §4.5: "one context
// per (SSRC, direction) pair; contexts do not share ROC state."
type Session struct {
	profile    Profile
	params     profileParams
	masterKey  []byte
	masterSalt []byte
	keys       sessionKeys

	ssrc uint32
	roc  uint32 // rollover counter: counts 2^16 sequence-number wraps
	lastSeq uint16
	seqInit bool

	replay *replayWindow
}

// NewSession derives session keys from a master key/salt pair and prepares
// replay protection. windowSize must be >= 64 (spec §4.5); pass 0 to use the
// spec default of 128.
func NewSession(profile Profile, ssrc uint32, masterKey, masterSalt []byte, windowSize int) (*Session, error) {
	params, err := paramsFor(profile)
	if err != nil {
		return nil, err
	}
	if len(masterKey) != params.keyLen {
		return nil, fmt.Errorf("srtp: master key length %d, want %d for %v", len(masterKey), params.keyLen, profile)
	}
	if len(masterSalt) != params.saltLen {
		return nil, fmt.Errorf("srtp: master salt length %d, want %d for %v", len(masterSalt), params.saltLen, profile)
	}
	if windowSize == 0 {
		windowSize = defaultReplayWindowSize
	}
	rw, err := newReplayWindow(windowSize)
	if err != nil {
		return nil, err
	}

	keys, err := deriveSessionKeys(masterKey, masterSalt, params, labelRTPEncr, labelRTPAuth, labelRTPSalt)
	if err != nil {
		return nil, err
	}

	return &Session{
		profile:    profile,
		params:     params,
		masterKey:  append([]byte(nil), masterKey...),
		masterSalt: append([]byte(nil), masterSalt...),
		keys:       keys,
		ssrc:       ssrc,
		replay:     rw,
	}, nil
}

// Rekey replaces the master key/salt and re-derives session keys, zeroing
// the previous material per spec §4.5.
func (s *Session) Rekey(masterKey, masterSalt []byte) error {
	if len(masterKey) != s.params.keyLen || len(masterSalt) != s.params.saltLen {
		return fmt.Errorf("srtp: rekey material has wrong length for %v", s.profile)
	}
	keys, err := deriveSessionKeys(masterKey, masterSalt, s.params, labelRTPEncr, labelRTPAuth, labelRTPSalt)
	if err != nil {
		return err
	}
	zero(s.masterKey)
	zero(s.masterSalt)
	zero(s.keys.encrKey)
	zero(s.keys.authKey)
	zero(s.keys.salt)

	s.masterKey = append([]byte(nil), masterKey...)
	s.masterSalt = append([]byte(nil), masterSalt...)
	s.keys = keys
	return nil
}

// Close zeroes all key material, per spec §4.5.
func (s *Session) Close() {
	zero(s.masterKey)
	zero(s.masterSalt)
	zero(s.keys.encrKey)
	zero(s.keys.authKey)
	zero(s.keys.salt)
}

// packetIndex reconstructs the 48-bit SRTP packet index (ROC<<16|SEQ),
// advancing the rollover counter when the 16-bit sequence wraps forward.
// This mirrors rtpsession's extended-sequence logic but keeps its own ROC
// since SRTP and RTP-layer loss concealment can observe packets in
// different orders (spec §4.5 keeps the two independent).
func (s *Session) packetIndex(seq uint16) uint64 {
	if !s.seqInit {
		s.seqInit = true
		s.lastSeq = seq
		return uint64(s.roc)<<16 | uint64(seq)
	}
	delta := int32(seq) - int32(s.lastSeq)
	roc := s.roc
	if delta < -0x8000 {
		roc++
	} else if delta > 0x8000 {
		roc--
	}
	return uint64(roc)<<16 | uint64(seq)
}

func (s *Session) commitSequence(seq uint16, index uint64) {
	roc := uint32(index >> 16)
	if roc != s.roc {
		s.roc = roc
	}
	s.lastSeq = seq
}

func (s *Session) buildIV(index uint64) []byte {
	iv := make([]byte, 16)
	copy(iv, s.keys.salt)
	var ssrcBuf [4]byte
	binary.BigEndian.PutUint32(ssrcBuf[:], s.ssrc)
	for i := 0; i < 4; i++ {
		iv[4+i] ^= ssrcBuf[i]
	}
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], index) // only the low 48 bits are meaningful
	for i := 0; i < 6; i++ {
		iv[8+i] ^= idxBuf[2+i]
	}
	return iv
}

// Protect encrypts and authenticates an RTP packet (header kept in the
// clear, payload encrypted, auth tag appended). header must be the raw
// on-wire RTP header bytes (12+ bytes, including any CSRC/extension) and
// payload the plaintext RTP payload. Returns the complete SRTP packet.
func (s *Session) Protect(header, payload []byte, seq uint16) ([]byte, error) {
	index := s.packetIndex(seq)

	var ciphertext []byte
	var tag []byte
	var err error

	if s.params.aead {
		ciphertext, tag, err = s.aeadSeal(header, payload, index)
	} else {
		ciphertext, err = s.cmCrypt(payload, index)
		if err == nil {
			tag = s.authTag(header, ciphertext, index)
		}
	}
	if err != nil {
		return nil, err
	}

	s.commitSequence(seq, index)

	out := make([]byte, 0, len(header)+len(ciphertext)+len(tag))
	out = append(out, header...)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return out, nil
}

// Unprotect authenticates, then checks the replay window, then commits —
// in that order, per spec §4.5: "authenticates first, then checks replay."
// A forged/corrupted packet is rejected as ErrAuthFailed before the replay
// window is ever consulted; a replay or too-old index is rejected without
// touching decrypted state or sequence bookkeeping.
func (s *Session) Unprotect(packet []byte, headerLen int, seq uint16) ([]byte, error) {
	if len(packet) < headerLen+s.params.tagLen {
		return nil, fmt.Errorf("srtp: packet shorter than header+tag")
	}
	header := packet[:headerLen]
	body := packet[headerLen : len(packet)-s.params.tagLen]
	tag := packet[len(packet)-s.params.tagLen:]

	index := s.packetIndex(seq)

	var plaintext []byte
	var err error
	if s.params.aead {
		plaintext, err = s.aeadOpen(header, body, tag, index)
		if err != nil {
			return nil, err
		}
	} else {
		expected := s.authTag(header, body, index)
		if !hmac.Equal(expected, tag) {
			return nil, ErrAuthFailed
		}
		plaintext, err = s.cmCrypt(body, index)
		if err != nil {
			return nil, err
		}
	}

	if err := s.replay.check(index); err != nil {
		return nil, err
	}

	s.replay.accept(index)
	s.commitSequence(seq, index)
	return plaintext, nil
}

// cmCrypt runs AES in counter mode (symmetric: same call encrypts or
// decrypts) with the IV derived from the packet index.
func (s *Session) cmCrypt(data []byte, index uint64) ([]byte, error) {
	block, err := aes.NewCipher(s.keys.encrKey)
	if err != nil {
		return nil, err
	}
	iv := s.buildIV(index)
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}

// authTag computes the truncated HMAC-SHA1 tag over header||ciphertext||ROC,
// per RFC 3711 §4.2 (the ROC is appended, not transmitted, since both ends
// track it independently).
func (s *Session) authTag(header, ciphertext []byte, index uint64) []byte {
	mac := hmac.New(sha1.New, s.keys.authKey)
	mac.Write(header)
	mac.Write(ciphertext)
	var rocBuf [4]byte
	binary.BigEndian.PutUint32(rocBuf[:], uint32(index>>16))
	mac.Write(rocBuf[:])
	full := mac.Sum(nil)
	return full[:s.params.tagLen]
}

func (s *Session) aeadSeal(header, payload []byte, index uint64) (ciphertext, tag []byte, err error) {
	aead, nonce, err := s.aeadCipher(index)
	if err != nil {
		return nil, nil, err
	}
	sealed := aead.Seal(nil, nonce, payload, header)
	ciphertext = sealed[:len(sealed)-aead.Overhead()]
	tag = sealed[len(sealed)-aead.Overhead():]
	return ciphertext, tag, nil
}

func (s *Session) aeadOpen(header, ciphertext, tag []byte, index uint64) ([]byte, error) {
	aead, nonce, err := s.aeadCipher(index)
	if err != nil {
		return nil, err
	}
	sealed := append(append([]byte(nil), ciphertext...), tag...)
	plain, err := aead.Open(nil, nonce, sealed, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return plain, nil
}

func (s *Session) aeadCipher(index uint64) (cipher.AEAD, []byte, error) {
	block, err := aes.NewCipher(s.keys.encrKey)
	if err != nil {
		return nil, nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	// GCM nonce per RFC 7714 §8.1: 96-bit salt XOR (SSRC || index), mirroring
	// the CM IV construction but sized for the AEAD nonce instead of a CTR IV.
	nonce := make([]byte, 12)
	copy(nonce, s.keys.salt)
	var ssrcBuf [4]byte
	binary.BigEndian.PutUint32(ssrcBuf[:], s.ssrc)
	for i := 0; i < 4; i++ {
		nonce[2+i] ^= ssrcBuf[i]
	}
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], index)
	for i := 0; i < 6; i++ {
		nonce[6+i] ^= idxBuf[2+i]
	}
	return aead, nonce, nil
}
