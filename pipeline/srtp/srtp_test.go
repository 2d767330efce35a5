package srtp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testMasterMaterial(t *testing.T, profile Profile) ([]byte, []byte) {
	t.Helper()
	keyLen, err := MasterKeySize(profile)
	require.NoError(t, err)
	saltLen, err := MasterSaltSize(profile)
	require.NoError(t, err)
	key := bytes.Repeat([]byte{0xAB}, keyLen)
	salt := bytes.Repeat([]byte{0xCD}, saltLen)
	return key, salt
}

func TestProtectUnprotectRoundTrip(t *testing.T) {
	for _, profile := range []Profile{ProfileAES128CMHMACSHA1_80, ProfileAES128CMHMACSHA1_32, ProfileAEADAES128GCM, ProfileAEADAES256GCM} {
		key, salt := testMasterMaterial(t, profile)
		send, err := NewSession(profile, 0x1234, key, salt, 0)
		require.NoError(t, err)
		recv, err := NewSession(profile, 0x1234, key, salt, 0)
		require.NoError(t, err)

		header := []byte{0x80, 0x00, 0x00, 0x01, 0, 0, 0, 160, 0x12, 0x34, 0x56, 0x78}
		payload := []byte("hello world, this is an rtp payload")

		out, err := send.Protect(header, payload, 1)
		require.NoError(t, err)

		plain, err := recv.Unprotect(out, len(header), 1)
		require.NoError(t, err)
		require.Equal(t, payload, plain)
	}
}

func TestUnprotectRejectsTamperedCiphertext(t *testing.T) {
	key, salt := testMasterMaterial(t, ProfileAES128CMHMACSHA1_80)
	send, err := NewSession(ProfileAES128CMHMACSHA1_80, 1, key, salt, 0)
	require.NoError(t, err)
	recv, err := NewSession(ProfileAES128CMHMACSHA1_80, 1, key, salt, 0)
	require.NoError(t, err)

	header := []byte{0x80, 0x00, 0x00, 0x01, 0, 0, 0, 1, 0, 0, 0, 1}
	out, err := send.Protect(header, []byte("payload-data"), 1)
	require.NoError(t, err)

	out[len(header)] ^= 0xFF // flip a ciphertext byte

	_, err = recv.Unprotect(out, len(header), 1)
	require.Error(t, err)
}

func TestUnprotectRejectsReplay(t *testing.T) {
	key, salt := testMasterMaterial(t, ProfileAES128CMHMACSHA1_80)
	send, err := NewSession(ProfileAES128CMHMACSHA1_80, 1, key, salt, 0)
	require.NoError(t, err)
	recv, err := NewSession(ProfileAES128CMHMACSHA1_80, 1, key, salt, 0)
	require.NoError(t, err)

	header := []byte{0x80, 0x00, 0x00, 0x01, 0, 0, 0, 1, 0, 0, 0, 1}
	out, err := send.Protect(header, []byte("only-once"), 1)
	require.NoError(t, err)

	_, err = recv.Unprotect(append([]byte(nil), out...), len(header), 1)
	require.NoError(t, err)

	_, err = recv.Unprotect(append([]byte(nil), out...), len(header), 1)
	require.Error(t, err)
}

func TestReplayWindowRejectsTooOld(t *testing.T) {
	w, err := newReplayWindow(64)
	require.NoError(t, err)
	w.accept(1000)
	require.Error(t, w.check(1000-64))
}

func TestReplayWindowAcceptsOutOfOrderWithinWindow(t *testing.T) {
	w, err := newReplayWindow(64)
	require.NoError(t, err)
	w.accept(100)
	require.NoError(t, w.check(95))
	w.accept(95)
	require.Error(t, w.check(95))
}

func TestNewSessionRejectsWrongKeyLength(t *testing.T) {
	_, err := NewSession(ProfileAES128CMHMACSHA1_80, 1, []byte("short"), bytes.Repeat([]byte{0}, 14), 0)
	require.Error(t, err)
}

func TestRekeyZeroesPreviousMaterial(t *testing.T) {
	key, salt := testMasterMaterial(t, ProfileAES128CMHMACSHA1_80)
	s, err := NewSession(ProfileAES128CMHMACSHA1_80, 1, key, salt, 0)
	require.NoError(t, err)

	oldEncrKey := append([]byte(nil), s.keys.encrKey...)
	oldEncrKeyBuf := s.keys.encrKey

	newKey, newSalt := testMasterMaterial(t, ProfileAES128CMHMACSHA1_80)
	newKey[0] ^= 0x01
	require.NoError(t, s.Rekey(newKey, newSalt))

	require.NotEqual(t, oldEncrKey, s.keys.encrKey)
	require.Equal(t, make([]byte, len(oldEncrKeyBuf)), oldEncrKeyBuf)
}

func TestSRTCPProtectUnprotectRoundTrip(t *testing.T) {
	key, salt := testMasterMaterial(t, ProfileAES128CMHMACSHA1_80)
	send, err := NewRTCPSession(ProfileAES128CMHMACSHA1_80, 42, key, salt, 0)
	require.NoError(t, err)
	recv, err := NewRTCPSession(ProfileAES128CMHMACSHA1_80, 42, key, salt, 0)
	require.NoError(t, err)

	header := []byte{0x80, 0xC8, 0x00, 0x06}
	body := []byte("sender-report-body-bytes-here00")

	out, err := send.Protect(header, body)
	require.NoError(t, err)

	plain, err := recv.Unprotect(out, len(header))
	require.NoError(t, err)
	require.Equal(t, append(append([]byte(nil), header...), body...), plain)
}
