package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"dictat/internal/core/config"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, in, user, pass, want string
	}{
		{
			name: "driver dsn untouched",
			in:   "root:pw@tcp(localhost:3306)/dictat?parseTime=true",
			want: "root:pw@tcp(localhost:3306)/dictat?parseTime=true",
		},
		{
			name: "url with defaults",
			in:   "mysql://root:pw@db:3306/dictat",
			want: "root:pw@tcp(db:3306)/dictat?charset=utf8mb4&parseTime=true",
		},
		{
			name: "jdbc with overrides",
			in:   "jdbc:mysql://db:3306/dictat?useSSL=false&characterEncoding=utf8&useUnicode=true",
			user: "app", pass: "secret",
			want: "app:secret@tcp(db:3306)/dictat?charset=utf8&parseTime=true&tls=false",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, normalizeMySQLDSN(tt.in, tt.user, tt.pass))
		})
	}
}

func TestMaskDSN(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "root:****@tcp(db)/x", maskDSN("root:pw@tcp(db)/x"))
	assert.Equal(t, "tcp(db)/x", maskDSN("tcp(db)/x"))
}

func TestNewGorm_UnsupportedDriver(t *testing.T) {
	t.Parallel()
	_, err := NewGorm(config.DB{Driver: "sqlite"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
