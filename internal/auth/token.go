package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTimePrecision is the resolution of iat and exp. Whole seconds
// would let a token issued earlier in the same second as a password
// change outlive it.
const tokenTimePrecision = time.Millisecond

func init() {
	jwt.TimePrecision = tokenTimePrecision
}

// Claims are the verified contents of an access token.
type Claims struct {
	Subject   int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssueToken signs {sub, iat, exp} for subjectID with HS256.
func (a *AccessControl) IssueToken(subjectID int64) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(subjectID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// VerifyToken checks the signature and expiry of tokenString. It fails
// with ErrTokenExpired once the TTL has elapsed and ErrInvalidToken for
// anything else wrong with the token.
func (a *AccessControl) VerifyToken(tokenString string) (Claims, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired.Wrap(err)
		}
		return Claims{}, ErrInvalidToken.Wrap(err)
	}
	if !token.Valid || claims.IssuedAt == nil {
		return Claims{}, ErrInvalidToken
	}

	subject, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || subject < 1 {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		Subject:   subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
