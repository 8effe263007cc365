package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"MGProject/global"
	"MGProject/tools/errs"
)

// Options 控制签名与TTL等参数。
type Options struct {
	Secret []byte        // HMAC 密钥（生产用ENV/KMS）
	Alg    string        // HS256/HS384/HS512（默认 HS256）
	TTL    time.Duration // 令牌有效期（默认 2h）
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 2 * time.Hour}
}

// IdentityResolver 把请求凭证解析成稳定的用户身份标识。
// 每个入站操作在进入业务层前都要先经过它。
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (identity string, err error)
}

// JWTResolver 基于 HMAC JWT 的 IdentityResolver 实现，身份取 sub claim。
type JWTResolver struct {
	opts Options
}

func NewJWTResolver(opts Options) *JWTResolver {
	if opts.Alg == "" {
		opts.Alg = "HS256"
	}
	return &JWTResolver{opts: opts}
}

func (r *JWTResolver) Resolve(ctx context.Context, credential string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", errs.ErrAuth.WrapMsg("empty credential")
	}
	claims, err := Verify(r.opts, credential)
	if err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errs.ErrAuth.WrapMsg("token missing sub claim")
	}
	// sub 是签发时用户可控的：字符集不合法的身份不进键空间
	if !global.IdentityValid(sub) {
		return "", errs.ErrAuth.WrapMsg("invalid subject", "sub", sub)
	}
	return sub, nil
}

// Generate 签发令牌（登录服务签发；本服务主要用于测试与本地联调）
func Generate(opts Options, userID string, scopes []string) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := jwtlib.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	if len(scopes) > 0 {
		claims["scope"] = scopes
	}

	tok := jwtlib.NewWithClaims(method, claims)
	signed, err := tok.SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify 校验令牌并返回 claims
func Verify(opts Options, token string) (jwtlib.MapClaims, error) {
	if _, err := signingMethod(opts.Alg); err != nil {
		return nil, err
	}
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// 仅允许 HMAC 家族
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil {
		return nil, errs.ErrAuth.WrapMsg("token verify failed", "err", err.Error())
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return nil, errs.ErrAuth.WrapMsg("token invalid")
	}
	return claims, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, errs.ErrAuth.WrapMsg("unsupported alg", "alg", alg)
	}
}
