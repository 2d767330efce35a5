package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
)

// RTCPSession is the SRTCP counterpart to Session. RTCP packets carry their
// own monotonically increasing index (no ROC reconstruction needed, since
// the index is transmitted explicitly in a 4-byte trailer per RFC 3711
// §3.4) with the top bit (the "E" encryption flag) set whenever the RTCP
// payload is encrypted.
type RTCPSession struct {
	profile Profile
	params  profileParams
	keys    sessionKeys
	ssrc    uint32
	index   uint32 // next index to send; low 31 bits per packet
	replay  *replayWindow
}

func NewRTCPSession(profile Profile, ssrc uint32, masterKey, masterSalt []byte, windowSize int) (*RTCPSession, error) {
	params, err := paramsFor(profile)
	if err != nil {
		return nil, err
	}
	if windowSize == 0 {
		windowSize = defaultReplayWindowSize
	}
	rw, err := newReplayWindow(windowSize)
	if err != nil {
		return nil, err
	}
	keys, err := deriveSessionKeys(masterKey, masterSalt, params, labelRTCPEncr, labelRTCPAuth, labelRTCPSalt)
	if err != nil {
		return nil, err
	}
	return &RTCPSession{profile: profile, params: params, keys: keys, ssrc: ssrc, replay: rw}, nil
}

const srtcpEncryptedFlag uint32 = 1 << 31

// Protect encrypts an RTCP compound packet (header unencrypted per the
// common-header convention, body encrypted) and appends the 4-byte SRTCP
// index trailer plus auth tag.
func (r *RTCPSession) Protect(header, body []byte) ([]byte, error) {
	index := r.index
	r.index++

	iv := r.buildIV(index)
	ciphertext, err := r.cmCrypt(body, iv)
	if err != nil {
		return nil, err
	}

	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], index|srtcpEncryptedFlag)

	tagInput := make([]byte, 0, len(header)+len(ciphertext)+4)
	tagInput = append(tagInput, header...)
	tagInput = append(tagInput, ciphertext...)
	tagInput = append(tagInput, trailer[:]...)
	tag := r.authTag(tagInput)

	out := make([]byte, 0, len(tagInput)+len(tag))
	out = append(out, tagInput...)
	out = append(out, tag...)
	return out, nil
}

// Unprotect verifies and decrypts an SRTCP packet. headerLen is the length
// of the unencrypted RTCP common header prefix.
func (r *RTCPSession) Unprotect(packet []byte, headerLen int) ([]byte, error) {
	if len(packet) < headerLen+4+r.params.tagLen {
		return nil, fmt.Errorf("srtcp: packet too short")
	}
	tag := packet[len(packet)-r.params.tagLen:]
	withoutTag := packet[:len(packet)-r.params.tagLen]
	trailer := withoutTag[len(withoutTag)-4:]
	body := withoutTag[headerLen : len(withoutTag)-4]
	header := withoutTag[:headerLen]

	expected := r.authTag(withoutTag)
	if !hmac.Equal(expected, tag) {
		return nil, fmt.Errorf("srtcp: authentication failed")
	}

	trailerVal := binary.BigEndian.Uint32(trailer)
	encrypted := trailerVal&srtcpEncryptedFlag != 0
	index := uint64(trailerVal &^ srtcpEncryptedFlag)

	if err := r.replay.check(index); err != nil {
		return nil, err
	}
	r.replay.accept(index)

	if !encrypted {
		return append(append([]byte(nil), header...), body...), nil
	}

	iv := r.buildIV(uint32(index))
	plain, err := r.cmCrypt(body, iv)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), header...), plain...), nil
}

func (r *RTCPSession) buildIV(index uint32) []byte {
	iv := make([]byte, 16)
	copy(iv, r.keys.salt)
	var ssrcBuf [4]byte
	binary.BigEndian.PutUint32(ssrcBuf[:], r.ssrc)
	for i := 0; i < 4; i++ {
		iv[4+i] ^= ssrcBuf[i]
	}
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], index)
	for i := 0; i < 4; i++ {
		iv[10+i] ^= idxBuf[i]
	}
	return iv
}

func (r *RTCPSession) cmCrypt(data, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(r.keys.encrKey)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}

func (r *RTCPSession) authTag(data []byte) []byte {
	mac := hmac.New(sha1.New, r.keys.authKey)
	mac.Write(data)
	full := mac.Sum(nil)
	return full[:r.params.tagLen]
}
