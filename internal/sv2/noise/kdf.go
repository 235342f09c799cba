package noise

import (
	"crypto/hmac"
	"crypto/sha256"
)

func sha256Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// hkdfDerive is HKDF-SHA256 with two output blocks, per Noise's MixKey
// (the chaining key doubles as the HKDF salt).
func hkdfDerive(salt, ikm []byte) ([32]byte, [32]byte) {
	prk := hmacSHA256(salt, ikm)

	var out1, out2 [32]byte
	t1 := hmacSHA256(prk[:], []byte{0x01})
	out1 = t1

	t2Input := append(append([]byte{}, t1[:]...), 0x02)
	t2 := hmacSHA256(prk[:], t2Input)
	out2 = t2

	return out1, out2
}

func hmacSHA256(key, data []byte) [32]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}
