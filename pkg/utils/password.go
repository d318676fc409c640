package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgoArgon2 = "argon2"
	AlgoBcrypt = "bcrypt"
)

var ErrUnknownAlgorithm = errors.New("unknown password hash algorithm")

// Argon2Params argon2id 参数，默认值参考 RFC 9106 第二推荐档
type Argon2Params struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

var DefaultArgon2 = Argon2Params{Memory: 64 * 1024, Time: 3, Threads: 2, SaltLen: 16, KeyLen: 32}

// PasswordHasher 新密码按 Algo 生成；校验按哈希前缀识别算法，因此两种旧哈希都能验证
type PasswordHasher struct {
	Algo       string
	Argon2     Argon2Params
	BcryptCost int
}

func NewPasswordHasher(algo string) (*PasswordHasher, error) {
	if algo != AlgoArgon2 && algo != AlgoBcrypt {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
	return &PasswordHasher{Algo: algo, Argon2: DefaultArgon2, BcryptCost: bcrypt.DefaultCost}, nil
}

func (h *PasswordHasher) Hash(pw string) (string, error) {
	if h.Algo == AlgoBcrypt {
		b, err := bcrypt.GenerateFromPassword([]byte(pw), h.BcryptCost)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	p := h.Argon2
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(pw), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	b64 := base64.RawStdEncoding
	// PHC 字符串格式
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify 对任何格式错误的哈希都只返回 false
func (h *PasswordHasher) Verify(pw, hashed string) bool {
	switch {
	case strings.HasPrefix(hashed, "$argon2id$"):
		return verifyArgon2(pw, hashed)
	case strings.HasPrefix(hashed, "$2a$"), strings.HasPrefix(hashed, "$2b$"), strings.HasPrefix(hashed, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
	}
	return false
}

func verifyArgon2(pw, hashed string) bool {
	parts := strings.Split(hashed, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var mem, iter uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &threads); err != nil {
		return false
	}
	if mem == 0 || iter == 0 || threads == 0 {
		return false
	}
	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := b64.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}
	got := argon2.IDKey([]byte(pw), salt, iter, mem, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
