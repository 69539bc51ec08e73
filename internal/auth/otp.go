package auth

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
)

const otpTTL = 10 * time.Minute

// OTPSender is the external collaborator that actually delivers a one-time
// code over email or SMS; the core only generates, stores, and verifies it.
type OTPSender interface {
	Send(ctx context.Context, destination, code string) error
}

// OTP issues and verifies short-lived codes at verify:{key} (key is the
// destination email or phone number), matching §3's verify: TTL-10m entry.
type OTP struct {
	rdb    *redis.Client
	sender OTPSender
}

func NewOTP(rdb *redis.Client, sender OTPSender) *OTP {
	return &OTP{rdb: rdb, sender: sender}
}

// Send mints a fresh 6-digit code, stores it, and hands it to the sender.
func (o *OTP) Send(ctx context.Context, destination string) error {
	code, err := randomDigits(6)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := o.rdb.Set(ctx, cache.VerifyKey(destination), code, otpTTL).Err(); err != nil {
		return apperr.Internal(err)
	}
	if err := o.sender.Send(ctx, destination, code); err != nil {
		return apperr.Unavailable("could not deliver verification code", 5)
	}
	return nil
}

// Verify checks a submitted code against the stored one and consumes it on
// success, so a code can only ever be used once.
func (o *OTP) Verify(ctx context.Context, destination, code string) error {
	stored, err := o.rdb.Get(ctx, cache.VerifyKey(destination)).Result()
	if err == redis.Nil {
		return apperr.New(apperr.KindValidation, "verification code expired or not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if stored != code {
		return apperr.New(apperr.KindValidation, "invalid verification code")
	}
	o.rdb.Del(ctx, cache.VerifyKey(destination))
	return nil
}

func randomDigits(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = '0' + b%10
	}
	return string(out), nil
}
